package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// ZapLogger adapts zap to watermill.LoggerAdapter
type ZapLogger struct {
	l *zap.Logger
}

// NewZapLogger wraps l for watermill publishers and subscribers
func NewZapLogger(l *zap.Logger) watermill.LoggerAdapter {
	return &ZapLogger{l: l.Named("watermill")}
}

func (z *ZapLogger) Error(msg string, err error, fields watermill.LogFields) {
	z.l.Error(msg, append(toZap(fields), zap.Error(err))...)
}

func (z *ZapLogger) Info(msg string, fields watermill.LogFields) {
	z.l.Info(msg, toZap(fields)...)
}

func (z *ZapLogger) Debug(msg string, fields watermill.LogFields) {
	z.l.Debug(msg, toZap(fields)...)
}

// Trace maps to debug; zap has no trace level
func (z *ZapLogger) Trace(msg string, fields watermill.LogFields) {
	z.l.Debug(msg, toZap(fields)...)
}

func (z *ZapLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &ZapLogger{l: z.l.With(toZap(fields)...)}
}

func toZap(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

package logger

import (
	"time"

	"go.uber.org/zap"
)

// HTTP

func RequestID(v string) zap.Field       { return zap.String("request_id", v) }
func Method(v string) zap.Field          { return zap.String("method", v) }
func Path(v string) zap.Field            { return zap.String("path", v) }
func Status(v int) zap.Field             { return zap.Int("status", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func ClientIP(v string) zap.Field        { return zap.String("client_ip", v) }
func UserAgent(v string) zap.Field       { return zap.String("user_agent", v) }

// Gate

func ChallengeID(v string) zap.Field { return zap.String("challenge_id", v) }
func LinkID(v string) zap.Field      { return zap.String("link_id", v) }
func GrantID(v string) zap.Field     { return zap.String("grant_id", v) }
func Reason(v string) zap.Field      { return zap.String("reason", v) }
func Verdict(v string) zap.Field     { return zap.String("verdict", v) }
func Step(v string) zap.Field        { return zap.String("step", v) }

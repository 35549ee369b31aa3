package ratelimit

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/layer-3/hoopgate/ports"
)

// MemoryLimiter is an in-process fixed window limiter
type MemoryLimiter struct {
	mu     sync.Mutex
	hits   *gocache.Cache
	max    int64
	window time.Duration
	now    func() time.Time
}

// NewMemoryLimiter allows max hits per key per window
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		hits:   gocache.New(window, 2*window),
		max:    int64(max),
		window: window,
		now:    time.Now,
	}
}

// WithClock replaces the limiter's time source
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (ports.RateResult, error) {
	now := l.now().UTC()
	winStart := now.Truncate(l.window)
	k := key + "|" + winStart.Format(time.RFC3339Nano)

	l.mu.Lock()
	var hits int64 = 1
	if v, ok := l.hits.Get(k); ok {
		hits = v.(int64) + 1
	}
	l.hits.Set(k, hits, l.window)
	l.mu.Unlock()

	return result(hits, l.max, winStart.Add(l.window).Sub(now), l.window), nil
}

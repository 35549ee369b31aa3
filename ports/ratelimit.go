package ports

import (
	"context"
	"time"
)

// RateResult is the outcome of a rate limit check
type RateResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// RateLimiter counts hits per key in a window
type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateResult, error)
}

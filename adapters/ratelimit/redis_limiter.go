package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/hoopgate/core"
	"github.com/layer-3/hoopgate/ports"
)

// RedisLimiter is a fixed window limiter (INCR + EXPIRE)
type RedisLimiter struct {
	client *redis.Client
	prefix string
	max    int64
	window time.Duration
}

// NewRedisLimiter allows max hits per key per window
func NewRedisLimiter(client *redis.Client, prefix string, max int, window time.Duration) ports.RateLimiter {
	if prefix == "" {
		prefix = "hoopgate:rl:"
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		max:    int64(max),
		window: window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (ports.RateResult, error) {
	winStart := time.Now().UTC().Truncate(l.window)
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.window)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return ports.RateResult{}, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	return result(incr.Val(), l.max, ttl.Val(), l.window), nil
}

func result(hits, max int64, ttl, window time.Duration) ports.RateResult {
	res := ports.RateResult{
		Allowed:   hits <= max,
		Remaining: max - hits,
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = ttl
		if res.RetryAfter <= 0 {
			res.RetryAfter = window
		}
	}
	return res
}

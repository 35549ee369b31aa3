package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/hoopgate/core"
	"github.com/layer-3/hoopgate/ports"
)

// casScript swaps the value only when it matches, without touching the TTL
var casScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "KEEPTTL")
	return 1
end
return 0
`)

// RedisKV is a Redis implementation of the KV interface
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV creates a new Redis KV
func NewRedisKV(client *redis.Client) ports.KV {
	return &RedisKV{
		client: client,
		prefix: "hoopgate:",
	}
}

// Put sets key with expiration; a non-positive ttl never expires
func (s *RedisKV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", core.ErrStoreUnavailable, key, err)
	}
	return nil
}

// Get retrieves a value by key
func (s *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get %s: %v", core.ErrStoreUnavailable, key, err)
	}
	return value, nil
}

// Delete removes a key
func (s *RedisKV) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("%w: del %s: %v", core.ErrStoreUnavailable, key, err)
	}
	return nil
}

// CompareAndSet runs the swap as a Lua script so concurrent callers are serialized by Redis
func (s *RedisKV) CompareAndSet(ctx context.Context, key string, expected, next []byte) (bool, error) {
	n, err := casScript.Run(ctx, s.client, []string{s.prefix + key}, expected, next).Int()
	if err != nil {
		return false, fmt.Errorf("%w: cas %s: %v", core.ErrStoreUnavailable, key, err)
	}
	return n == 1, nil
}

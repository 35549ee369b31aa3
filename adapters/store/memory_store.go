package store

import (
	"bytes"
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/layer-3/hoopgate/core"
	"github.com/layer-3/hoopgate/ports"
)

// MemoryKV is an in-process implementation of the KV interface.
// Expired keys are invisible immediately and reaped by the go-cache janitor.
type MemoryKV struct {
	cache *gocache.Cache
	mu    sync.Mutex // Serializes writes so CompareAndSet is atomic
}

// NewMemoryKV creates a new in-memory KV that reaps expired keys every cleanup interval
func NewMemoryKV(cleanup time.Duration) ports.KV {
	return &MemoryKV{
		cache: gocache.New(gocache.NoExpiration, cleanup),
	}
}

// Put stores a copy of value; a non-positive ttl never expires
func (s *MemoryKV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Set(key, bytes.Clone(value), expiration(ttl))
	return nil
}

// Get returns a copy of the value at key
func (s *MemoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, core.ErrNotFound
	}
	return bytes.Clone(v.([]byte)), nil
}

// Delete removes a key; deleting an absent key is not an error
func (s *MemoryKV) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Delete(key)
	return nil
}

// CompareAndSet swaps the value if it matches expected, keeping the remaining TTL
func (s *MemoryKV) CompareAndSet(ctx context.Context, key string, expected, next []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exp, ok := s.cache.GetWithExpiration(key)
	if !ok || !bytes.Equal(v.([]byte), expected) {
		return false, nil
	}

	ttl := gocache.NoExpiration
	if !exp.IsZero() {
		ttl = time.Until(exp)
		if ttl <= 0 {
			return false, nil
		}
	}
	s.cache.Set(key, bytes.Clone(next), ttl)
	return true, nil
}

func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

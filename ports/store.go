package ports

import (
	"context"
	"time"

	"github.com/layer-3/hoopgate/core"
)

// KV is the TTL key-value contract the gate runs on.
// Get returns core.ErrNotFound for absent and expired keys alike.
type KV interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error

	// CompareAndSet replaces the value at key with next only if it currently
	// equals expected, keeping the key's TTL. It must be linearizable.
	CompareAndSet(ctx context.Context, key string, expected, next []byte) (bool, error)
}

// Store persists short-lived gate records
type Store interface {
	SaveChallenge(ctx context.Context, c *core.Challenge) error
	GetChallenge(ctx context.Context, id string) (*core.Challenge, error)
	// ConsumeChallenge marks the challenge used exactly once and returns it.
	// Returns core.ErrAlreadyConsumed or core.ErrNotFound otherwise.
	ConsumeChallenge(ctx context.Context, id string) (*core.Challenge, error)

	SaveGrant(ctx context.Context, g *core.AccessGrant) error
	GetGrant(ctx context.Context, id string) (*core.AccessGrant, error)
	// FindGrant returns the most recent grant for the pair
	FindGrant(ctx context.Context, ip, linkID string) (*core.AccessGrant, error)

	// SaveReceipt supersedes any receipt for the same (IP, link)
	SaveReceipt(ctx context.Context, r *core.StepOneReceipt) error
	FindReceipt(ctx context.Context, ip, linkID string) (*core.StepOneReceipt, error)
	DeleteReceipt(ctx context.Context, ip, linkID string) error
}

// LinkRepository stores gated links. Links are never modified after Create.
type LinkRepository interface {
	Create(ctx context.Context, l *core.Link) error
	ByID(ctx context.Context, id string) (*core.Link, error)
	BySlug(ctx context.Context, slug string) (*core.Link, error)
}

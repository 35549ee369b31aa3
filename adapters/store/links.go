package store

import (
	"context"
	"encoding/json"
	"fmt"

	gocache "github.com/patrickmn/go-cache"

	"github.com/layer-3/hoopgate/core"
	"github.com/layer-3/hoopgate/ports"
)

// KVLinks stores links without expiry as link:<id> plus a link:slug:<slug> index
type KVLinks struct {
	kv ports.KV
}

// NewKVLinks creates a link repository on top of a KV
func NewKVLinks(kv ports.KV) ports.LinkRepository {
	return &KVLinks{kv: kv}
}

// Create stores a new link
func (r *KVLinks) Create(ctx context.Context, l *core.Link) error {
	b, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}
	if err := r.kv.Put(ctx, "link:"+l.ID, b, 0); err != nil {
		return err
	}
	return r.kv.Put(ctx, "link:slug:"+l.Slug, []byte(l.ID), 0)
}

// ByID loads a link
func (r *KVLinks) ByID(ctx context.Context, id string) (*core.Link, error) {
	b, err := r.kv.Get(ctx, "link:"+id)
	if err != nil {
		return nil, err
	}
	var l core.Link
	if err := json.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("failed to unmarshal link: %w", err)
	}
	return &l, nil
}

// BySlug resolves the slug index, then loads the link
func (r *KVLinks) BySlug(ctx context.Context, slug string) (*core.Link, error) {
	id, err := r.kv.Get(ctx, "link:slug:"+slug)
	if err != nil {
		return nil, err
	}
	return r.ByID(ctx, string(id))
}

// CachedLinks keeps every link it has seen for the life of the process.
// Links are immutable, so entries are loaded once and never invalidated.
// Misses are not cached.
type CachedLinks struct {
	next  ports.LinkRepository
	cache *gocache.Cache
}

// NewCachedLinks wraps a link repository with a process-scoped cache
func NewCachedLinks(next ports.LinkRepository) *CachedLinks {
	return &CachedLinks{
		next:  next,
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// Create stores the link and primes the cache
func (c *CachedLinks) Create(ctx context.Context, l *core.Link) error {
	if err := c.next.Create(ctx, l); err != nil {
		return err
	}
	c.remember(l)
	return nil
}

// ByID serves from cache, falling back to the wrapped repository
func (c *CachedLinks) ByID(ctx context.Context, id string) (*core.Link, error) {
	if v, ok := c.cache.Get("id:" + id); ok {
		l := *v.(*core.Link)
		return &l, nil
	}
	l, err := c.next.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.remember(l)
	return l, nil
}

// BySlug serves from cache, falling back to the wrapped repository
func (c *CachedLinks) BySlug(ctx context.Context, slug string) (*core.Link, error) {
	if v, ok := c.cache.Get("slug:" + slug); ok {
		l := *v.(*core.Link)
		return &l, nil
	}
	l, err := c.next.BySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	c.remember(l)
	return l, nil
}

// Len reports how many cache entries are held
func (c *CachedLinks) Len() int {
	return c.cache.ItemCount()
}

func (c *CachedLinks) remember(l *core.Link) {
	cp := *l
	c.cache.Set("id:"+l.ID, &cp, gocache.NoExpiration)
	c.cache.Set("slug:"+l.Slug, &cp, gocache.NoExpiration)
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/hoopgate/core"
	"github.com/layer-3/hoopgate/ports"
)

var (
	stateIssued   = []byte("issued")
	stateConsumed = []byte("consumed")
)

// KVStore implements the Store interface on top of any KV.
//
// Key layout:
//
//	challenge:<id>             challenge JSON
//	challenge:<id>:state       "issued" | "consumed"
//	grant:<id>                 grant JSON
//	grant:pair:<link>:<ip>     id of the latest grant for the pair
//	receipt:<link>:<ip>        receipt JSON
type KVStore struct {
	kv  ports.KV
	now func() time.Time
}

// NewKVStore creates a record store. now drives TTL computation from record expiry.
func NewKVStore(kv ports.KV, now func() time.Time) ports.Store {
	if now == nil {
		now = time.Now
	}
	return &KVStore{kv: kv, now: now}
}

func challengeKey(id string) string         { return "challenge:" + id }
func challengeStateKey(id string) string    { return "challenge:" + id + ":state" }
func grantKey(id string) string             { return "grant:" + id }
func grantPairKey(ip, linkID string) string { return "grant:pair:" + linkID + ":" + ip }
func receiptKey(ip, linkID string) string   { return "receipt:" + linkID + ":" + ip }

// SaveChallenge stores a fresh, unconsumed challenge
func (s *KVStore) SaveChallenge(ctx context.Context, c *core.Challenge) error {
	ttl, err := s.ttl(c.ExpiresAt)
	if err != nil {
		return err
	}
	if err := s.putJSON(ctx, challengeKey(c.ID), c, ttl); err != nil {
		return err
	}
	return s.kv.Put(ctx, challengeStateKey(c.ID), stateIssued, ttl)
}

// GetChallenge loads a challenge together with its consumption state
func (s *KVStore) GetChallenge(ctx context.Context, id string) (*core.Challenge, error) {
	var c core.Challenge
	if err := s.getJSON(ctx, challengeKey(id), &c); err != nil {
		return nil, err
	}
	state, err := s.kv.Get(ctx, challengeStateKey(id))
	if err != nil {
		return nil, err
	}
	c.Consumed = string(state) == string(stateConsumed)
	return &c, nil
}

// ConsumeChallenge flips the state key from issued to consumed exactly once
func (s *KVStore) ConsumeChallenge(ctx context.Context, id string) (*core.Challenge, error) {
	ok, err := s.kv.CompareAndSet(ctx, challengeStateKey(id), stateIssued, stateConsumed)
	if err != nil {
		return nil, err
	}
	if !ok {
		// State only moves forward, so an existing key here means someone else consumed it
		if _, err := s.kv.Get(ctx, challengeStateKey(id)); err == nil {
			return nil, core.ErrAlreadyConsumed
		} else if !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		return nil, core.ErrNotFound
	}

	var c core.Challenge
	if err := s.getJSON(ctx, challengeKey(id), &c); err != nil {
		return nil, err
	}
	c.Consumed = true
	return &c, nil
}

// SaveGrant stores the grant and points its (IP, link) index at it
func (s *KVStore) SaveGrant(ctx context.Context, g *core.AccessGrant) error {
	ttl, err := s.ttl(g.ExpiresAt)
	if err != nil {
		return err
	}
	if err := s.putJSON(ctx, grantKey(g.ID), g, ttl); err != nil {
		return err
	}
	if g.LinkID == "" {
		return nil
	}
	return s.kv.Put(ctx, grantPairKey(g.IP, g.LinkID), []byte(g.ID), ttl)
}

// GetGrant loads a grant by id
func (s *KVStore) GetGrant(ctx context.Context, id string) (*core.AccessGrant, error) {
	var g core.AccessGrant
	if err := s.getJSON(ctx, grantKey(id), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// FindGrant follows the pair index to the latest grant
func (s *KVStore) FindGrant(ctx context.Context, ip, linkID string) (*core.AccessGrant, error) {
	id, err := s.kv.Get(ctx, grantPairKey(ip, linkID))
	if err != nil {
		return nil, err
	}
	return s.GetGrant(ctx, string(id))
}

// SaveReceipt overwrites the receipt for the pair
func (s *KVStore) SaveReceipt(ctx context.Context, r *core.StepOneReceipt) error {
	ttl, err := s.ttl(r.ExpiresAt)
	if err != nil {
		return err
	}
	return s.putJSON(ctx, receiptKey(r.IP, r.LinkID), r, ttl)
}

// FindReceipt loads the receipt for the pair
func (s *KVStore) FindReceipt(ctx context.Context, ip, linkID string) (*core.StepOneReceipt, error) {
	var r core.StepOneReceipt
	if err := s.getJSON(ctx, receiptKey(ip, linkID), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteReceipt removes the receipt for the pair
func (s *KVStore) DeleteReceipt(ctx context.Context, ip, linkID string) error {
	return s.kv.Delete(ctx, receiptKey(ip, linkID))
}

func (s *KVStore) ttl(expiresAt time.Time) (time.Duration, error) {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return 0, fmt.Errorf("record already expired: %w", core.ErrNotFound)
	}
	return ttl, nil
}

func (s *KVStore) putJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.kv.Put(ctx, key, b, ttl)
}

func (s *KVStore) getJSON(ctx context.Context, key string, v any) error {
	b, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

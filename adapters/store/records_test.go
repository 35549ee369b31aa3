package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/hoopgate/core"
)

func newTestStore() *KVStore {
	return NewKVStore(NewMemoryKV(time.Minute), nil).(*KVStore)
}

func TestChallengeConsumeOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	now := time.Now()

	c := &core.Challenge{
		ID:        "c1",
		Nonce:     "n1",
		Hoop:      core.Hoop{X: 0.3, Y: 0.6},
		Visual:    core.Physics{Gravity: 0.25, PowerScale: 1},
		Hidden:    core.Physics{Gravity: 0.27, PowerScale: 0.97},
		CreatedAt: now,
		ExpiresAt: now.Add(time.Minute),
	}
	require.NoError(t, s.SaveChallenge(ctx, c))

	got, err := s.GetChallenge(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, got.Consumed)
	assert.Equal(t, c.Hidden, got.Hidden)

	consumed, err := s.ConsumeChallenge(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, consumed.Consumed)
	assert.Equal(t, "n1", consumed.Nonce)

	_, err = s.ConsumeChallenge(ctx, "c1")
	assert.ErrorIs(t, err, core.ErrAlreadyConsumed)

	_, err = s.ConsumeChallenge(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)

	got, err = s.GetChallenge(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, got.Consumed)
}

func TestSaveExpiredRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	err := s.SaveChallenge(ctx, &core.Challenge{ID: "old", ExpiresAt: time.Now().Add(-time.Second)})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGrantPairIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	now := time.Now()

	first := &core.AccessGrant{ID: "g1", IP: "10.0.0.1", LinkID: "l1", Status: core.GrantStarted, CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	second := &core.AccessGrant{ID: "g2", IP: "10.0.0.1", LinkID: "l1", Status: core.GrantStarted, CreatedAt: now.Add(time.Second), ExpiresAt: now.Add(time.Minute)}
	anon := &core.AccessGrant{ID: "g3", IP: "10.0.0.1", Status: core.GrantStarted, CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, s.SaveGrant(ctx, first))
	require.NoError(t, s.SaveGrant(ctx, second))
	require.NoError(t, s.SaveGrant(ctx, anon))

	g, err := s.FindGrant(ctx, "10.0.0.1", "l1")
	require.NoError(t, err)
	assert.Equal(t, "g2", g.ID, "latest grant wins")

	_, err = s.FindGrant(ctx, "10.0.0.2", "l1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	g.Status = core.GrantCompleted
	require.NoError(t, s.SaveGrant(ctx, g))
	g, err = s.GetGrant(ctx, "g2")
	require.NoError(t, err)
	assert.Equal(t, core.GrantCompleted, g.Status)

	g, err = s.GetGrant(ctx, "g3")
	require.NoError(t, err)
	assert.Empty(t, g.LinkID)
}

func TestReceiptSupersedes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	now := time.Now()

	require.NoError(t, s.SaveReceipt(ctx, &core.StepOneReceipt{IP: "ip", LinkID: "l", UserAgent: "ua-1", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, s.SaveReceipt(ctx, &core.StepOneReceipt{IP: "ip", LinkID: "l", UserAgent: "ua-2", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}))

	r, err := s.FindReceipt(ctx, "ip", "l")
	require.NoError(t, err)
	assert.Equal(t, "ua-2", r.UserAgent)

	require.NoError(t, s.DeleteReceipt(ctx, "ip", "l"))
	_, err = s.FindReceipt(ctx, "ip", "l")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

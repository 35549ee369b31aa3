package store

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/hoopgate/core"
)

// redisClient connects to REDIS_URL and skips the test when no server is reachable
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	return client
}

func TestRedisKVPutGetDelete(t *testing.T) {
	ctx := context.Background()
	kv := NewRedisKV(redisClient(t))
	key := "test:" + uuid.NewString()

	_, err := kv.Get(ctx, key)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, kv.Put(ctx, key, []byte("v"), time.Minute))
	v, err := kv.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, kv.Delete(ctx, key))
	_, err = kv.Get(ctx, key)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRedisKVExpiryLooksLikeAbsence(t *testing.T) {
	ctx := context.Background()
	kv := NewRedisKV(redisClient(t))
	key := "test:" + uuid.NewString()

	require.NoError(t, kv.Put(ctx, key, []byte("v"), 50*time.Millisecond))

	assert.Eventually(t, func() bool {
		_, err := kv.Get(ctx, key)
		return err == core.ErrNotFound
	}, 2*time.Second, 10*time.Millisecond)

	ok, err := kv.CompareAndSet(ctx, key, []byte("v"), []byte("w"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisKVCompareAndSetKeepsTTL(t *testing.T) {
	ctx := context.Background()
	client := redisClient(t)
	kv := NewRedisKV(client)
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { _ = kv.Delete(ctx, key) })

	require.NoError(t, kv.Put(ctx, key, []byte("issued"), time.Minute))

	ok, err := kv.CompareAndSet(ctx, key, []byte("consumed"), []byte("issued"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = kv.CompareAndSet(ctx, key, []byte("issued"), []byte("consumed"))
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := kv.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "consumed", string(v))

	ttl, err := client.TTL(ctx, "hoopgate:"+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0), "swap must not clear the expiry")
	assert.LessOrEqual(t, ttl, time.Minute)

	ok, err = kv.CompareAndSet(ctx, "test:"+uuid.NewString(), []byte("issued"), []byte("consumed"))
	require.NoError(t, err)
	assert.False(t, ok, "absent keys never match")
}

func TestRedisKVCompareAndSetIsLinearizable(t *testing.T) {
	ctx := context.Background()
	kv := NewRedisKV(redisClient(t))
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { _ = kv.Delete(ctx, key) })

	require.NoError(t, kv.Put(ctx, key, []byte("issued"), time.Minute))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := kv.CompareAndSet(ctx, key, []byte("issued"), []byte("consumed"))
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestRedisKVConsumeChallengeOnce(t *testing.T) {
	ctx := context.Background()
	st := NewKVStore(NewRedisKV(redisClient(t)), time.Now)

	now := time.Now()
	c := &core.Challenge{ID: uuid.NewString(), Nonce: "abcd", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, st.SaveChallenge(ctx, c))

	got, err := st.ConsumeChallenge(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.True(t, got.Consumed)

	_, err = st.ConsumeChallenge(ctx, c.ID)
	assert.ErrorIs(t, err, core.ErrAlreadyConsumed)

	_, err = st.ConsumeChallenge(ctx, uuid.NewString())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

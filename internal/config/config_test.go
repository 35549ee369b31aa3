package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "memory", c.Store.Kind)
	assert.Equal(t, 15*time.Minute, c.Gate.ChallengeTTL.Std())
	assert.Equal(t, 10*time.Minute, c.Gate.GrantTTL.Std())
	assert.Equal(t, 15*time.Minute, c.Gate.ReceiptTTL.Std())
	assert.Equal(t, 10*time.Second, c.Gate.DefaultMinWait.Std())
	assert.Equal(t, 50, c.RateLimit.Max)
	assert.Equal(t, 8, c.Behavior.MinPoints)
	assert.Equal(t, devSecret, c.Gate.Secret)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hoopgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
gate:
  secret: "file-secret-0123456789"
  challenge_ttl: 5m
behavior:
  min_points: 12
  min_duration_ms: 200
`), 0o600))

	t.Setenv("HOOPGATE_ADDR", ":9100")
	t.Setenv("HOOPGATE_MIN_WAIT", "30s")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", c.Server.Addr, "env wins over file")
	assert.Equal(t, "file-secret-0123456789", c.Gate.Secret)
	assert.Equal(t, 5*time.Minute, c.Gate.ChallengeTTL.Std())
	assert.Equal(t, 10*time.Minute, c.Gate.GrantTTL.Std(), "unset keys keep defaults")
	assert.Equal(t, 30*time.Second, c.Gate.DefaultMinWait.Std())
	assert.Equal(t, 12, c.Behavior.MinPoints)
	assert.Equal(t, 200.0, c.Behavior.MinDurationMs)
	assert.Equal(t, 0.0004, c.Behavior.MinJerkMean)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Run("redis without url", func(t *testing.T) {
		t.Setenv("HOOPGATE_STORE", "redis")
		_, err := Load("")
		require.Error(t, err)
	})

	t.Run("prod without secret", func(t *testing.T) {
		t.Setenv("APP_ENV", "prod")
		_, err := Load("")
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("gate:\n  grant_ttl: soon\n"), 0o600))
		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("redis events without url", func(t *testing.T) {
		t.Setenv("HOOPGATE_EVENTS", "redis")
		_, err := Load("")
		require.ErrorContains(t, err, "redis_url")

		t.Setenv("REDIS_URL", "redis://localhost:6379/0")
		c, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "memory", c.Store.Kind)
	})

	t.Run("unknown store", func(t *testing.T) {
		t.Setenv("HOOPGATE_STORE", "mongo")
		_, err := Load("")
		require.Error(t, err)
	})
}

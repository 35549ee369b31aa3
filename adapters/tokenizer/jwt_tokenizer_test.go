package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/hoopgate/core"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func TestGrantRoundTrip(t *testing.T) {
	tok := NewJWTTokenizer(newKey(t))
	now := time.Now().Truncate(time.Second)

	in := &core.AccessGrant{
		ID:        "grant-1",
		IP:        "203.0.113.7",
		LinkID:    "link-1",
		Status:    core.GrantStarted,
		CreatedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}
	s, err := tok.GrantToToken(in)
	require.NoError(t, err)

	out, err := tok.TokenToGrant(s)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.IP, out.IP)
	assert.Equal(t, in.LinkID, out.LinkID)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.True(t, in.ExpiresAt.Equal(out.ExpiresAt))
	assert.Empty(t, out.Status, "status lives in the store")
}

func TestTokenRejections(t *testing.T) {
	key := newKey(t)
	tok := NewJWTTokenizer(key)
	now := time.Now()

	expired, err := tok.GrantToToken(&core.AccessGrant{ID: "g", CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute)})
	require.NoError(t, err)

	foreign, err := NewJWTTokenizer(newKey(t)).GrantToToken(&core.AccessGrant{ID: "g", CreatedAt: now, ExpiresAt: now.Add(time.Minute)})
	require.NoError(t, err)

	wrongAud, err := jwt.NewWithClaims(jwt.SigningMethodES256, GrantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "g",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			Audience:  jwt.ClaimStrings{"session:access"},
		},
	}).SignedString(key)
	require.NoError(t, err)

	for name, s := range map[string]string{
		"garbage":        "not-a-token",
		"expired":        expired,
		"foreign key":    foreign,
		"wrong audience": wrongAud,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tok.TokenToGrant(s)
			assert.ErrorIs(t, err, core.ErrInvalidToken)
		})
	}
}

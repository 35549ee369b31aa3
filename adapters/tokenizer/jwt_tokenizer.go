package tokenizer

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/layer-3/hoopgate/core"
	"github.com/layer-3/hoopgate/ports"
)

const AudienceGrant = "gate:grant"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey) ports.Tokenizer {
	return &JWTTokenizer{signKey: signKey}
}

// GrantToToken signs a grant into a session token
func (j *JWTTokenizer) GrantToToken(grant *core.AccessGrant) (string, error) {
	claims := GrantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   grant.IP,
			ID:        grant.ID,
			ExpiresAt: jwt.NewNumericDate(grant.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(grant.CreatedAt),
			Audience:  jwt.ClaimStrings{AudienceGrant},
		},
		LinkID: grant.LinkID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// TokenToGrant verifies a session token and returns the grant it names
func (j *JWTTokenizer) TokenToGrant(tokenStr string) (*core.AccessGrant, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &GrantClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(AudienceGrant))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", core.ErrInvalidToken)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*GrantClaims)
	if !ok {
		return nil, core.ErrInvalidToken
	}

	grant := &core.AccessGrant{
		ID:     claims.ID,
		IP:     claims.Subject,
		LinkID: claims.LinkID,
	}
	if claims.IssuedAt != nil {
		grant.CreatedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		grant.ExpiresAt = claims.ExpiresAt.Time
	}

	return grant, nil
}

package tokenizer

import "github.com/golang-jwt/jwt/v5"

// GrantClaims carry an access grant. Subject is the client IP.
type GrantClaims struct {
	jwt.RegisteredClaims
	LinkID string `json:"lid,omitempty"`
}

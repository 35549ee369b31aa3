package ports

import "github.com/layer-3/hoopgate/core"

// Tokenizer converts access grants to session tokens and back
type Tokenizer interface {
	GrantToToken(grant *core.AccessGrant) (string, error)
	// TokenToGrant verifies the token and returns the grant fields it carries.
	// Status is not part of the token; load the grant from the store for it.
	TokenToGrant(token string) (*core.AccessGrant, error)
}

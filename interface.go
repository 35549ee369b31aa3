// Package hoopgate is a Go client for the gate API.
//
// Shots are encoded with the challenge nonce and the key the server expects
// for the stage: the session token for step one, the link id for step two.
package hoopgate

import (
	"context"

	"github.com/layer-3/hoopgate/core"
)

// Client represents the public interface for playing through the gate
type Client interface {
	// Init issues a challenge, bound to linkID or slug when given
	Init(ctx context.Context, linkID, slug string) (core.PublicChallenge, error)

	// ValidateStepOne submits a first-stage shot and returns the redirect on a hit
	ValidateStepOne(ctx context.Context, c core.PublicChallenge, sessionToken string, a core.Attempt) (StepOneResponse, error)

	// ValidateStepTwo submits the final shot and returns the destination
	ValidateStepTwo(ctx context.Context, c core.PublicChallenge, linkID string, a core.Attempt) (string, error)
}

// StepOneResponse is the server's answer to a first-stage shot
type StepOneResponse struct {
	Success  bool   `json:"success"`
	Redirect string `json:"redirect,omitempty"`
	Error    string `json:"error,omitempty"` // "miss" when the shot missed
}

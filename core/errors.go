package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found or expired")
	ErrAlreadyConsumed     = errors.New("challenge already consumed")
	ErrHandshakeFailed     = errors.New("handshake failed")
	ErrAbnormalBehavior    = errors.New("abnormal behavior")
	ErrPrerequisiteMissing = errors.New("step one required")
	ErrSessionExpired      = errors.New("session expired")
	ErrInvalidToken        = errors.New("invalid token")
	ErrShortenerFailed     = errors.New("shortener failed")
	ErrStoreUnavailable    = errors.New("store operation failed")
)

// ErrLinkNotFound is an ErrNotFound for the gated link itself
var ErrLinkNotFound = fmt.Errorf("link %w", ErrNotFound)

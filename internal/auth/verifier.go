package auth

import (
	"context"
	"errors"
	"time"
)

// ErrTokenRejected is returned by verifiers when a bearer token is missing,
// malformed, expired, or unknown to the identity provider.
var ErrTokenRejected = errors.New("bearer token rejected")

// Identity describes the principal behind an accepted bearer token.
type Identity struct {
	Subject   string    `json:"subject"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenVerifier validates bearer tokens presented on management endpoints.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

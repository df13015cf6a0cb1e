package auth

import (
	"context"
	"net/http"
)

// CredentialProvider attaches authentication material to a pending
// request. Implementations must be safe for concurrent use.
type CredentialProvider interface {
	// Apply sets the auth headers on req. It may perform a network
	// call (token fetch) and therefore honors ctx.
	Apply(ctx context.Context, req *http.Request) error

	// Refresh discards any cached material so the next Apply fetches
	// fresh credentials. A no-op for stateless strategies.
	Refresh(ctx context.Context) error
}

// Credential is an immutable key pair. Which strategy consumes it
// decides the meaning: access key + secret key for request signing,
// api key + secret key for token exchange.
type Credential struct {
	Key    string
	Secret string
}

// Package providers defines the interface for upstream OAuth authorization
// servers and the error kinds their operations can fail with.
package providers

import (
	"context"
	"fmt"
)

// Provider defines the three OAuth2 exchanges performed against the upstream
// authorization server. Implementations are stateless; all credential state
// lives in the token store.
type Provider interface {
	// Name returns the provider name (e.g., "snapchat")
	Name() string

	// AuthorizationURL generates the URL to redirect users for consent.
	// Pure string construction, no network call. If state is empty, a
	// cryptographically random replacement is generated.
	AuthorizationURL(state string) string

	// ExchangeCode exchanges an authorization code for the initial token pair
	ExchangeCode(ctx context.Context, code string) (*TokenResponse, error)

	// RefreshToken mints a new access token from a refresh token
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// TokenResponse is a successful response from the upstream token endpoint.
// A successful response always carries a non-empty access token and a
// positive expiry. An absent refresh token means "reuse the previous one",
// never "revoke it".
type TokenResponse struct {
	// AccessToken is the bearer token for the resource API
	AccessToken string

	// RefreshToken is the new refresh token, empty when the server kept
	// the previous one valid
	RefreshToken string

	// ExpiresIn is the access token lifetime in seconds
	ExpiresIn int64

	// TokenType is the token type, normally "Bearer"
	TokenType string
}

// UpstreamError indicates the authorization or resource server answered with
// a non-success HTTP status. Status and body are carried so callers can
// propagate them upward.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// DecodeError indicates the upstream response body was not a well-formed
// token response. Fatal for the call; never retried.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed token response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed token response: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Package storage defines the interface for persisting per-user OAuth token
// records. It supports various backend implementations including in-memory
// and Valkey/Redis-compatible stores.
package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by TokenStore implementations. Callers must be
// able to tell "no token stored" apart from "storage backend is down":
// the first means the user has to re-authorize, the second is a transient
// outage that must not purge or mask credential state.
var (
	// ErrTokenNotFound indicates no token record exists for the user.
	ErrTokenNotFound = errors.New("token not found")

	// ErrStoreUnavailable indicates the storage backend could not be reached.
	// Backend implementations wrap I/O failures with this error so callers
	// can detect it with errors.Is.
	ErrStoreUnavailable = errors.New("token store unavailable")
)

// TokenRecord is the credential state stored for a single user. A record is
// always written as a whole: access token, refresh token, and expiry are
// never updated independently of each other.
type TokenRecord struct {
	// UserID is the opaque user identifier the record is keyed by.
	UserID string `json:"user_id"`

	// AccessToken is the short-lived bearer token for the Marketing API.
	AccessToken string `json:"access_token"`

	// RefreshToken is the long-lived token used to mint new access tokens.
	// It is replaced only when the authorization server supplies a new one.
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is the UTC instant after which AccessToken must not be used.
	ExpiresAt time.Time `json:"expires_at"`
}

// Clone returns a deep copy of the record.
func (r *TokenRecord) Clone() *TokenRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// TokenStore defines the interface for storing and retrieving token records.
// This allows using in-memory, Valkey, database, or other storage backends.
// All methods accept context.Context for tracing and cancellation, and all
// are idempotent: deleting or fetching an absent record is not an error
// beyond the sentinel ErrTokenNotFound on Get.
type TokenStore interface {
	// SaveToken persists the record for a user, replacing any previous one.
	SaveToken(ctx context.Context, userID string, record *TokenRecord) error

	// GetToken retrieves the record for a user.
	// Returns ErrTokenNotFound when no record exists.
	GetToken(ctx context.Context, userID string) (*TokenRecord, error)

	// DeleteToken removes the record for a user. Deleting an absent record
	// succeeds.
	DeleteToken(ctx context.Context, userID string) error
}

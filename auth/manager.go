package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/growthtools/snapgate/instrumentation"
	"github.com/growthtools/snapgate/providers"
	"github.com/growthtools/snapgate/security"
	"github.com/growthtools/snapgate/storage"
)

const (
	// DefaultUserID is used when a caller supplies no user identifier, or
	// when the state parameter on the callback is absent or malformed. The
	// state is a correlation aid here, not a security boundary, so falling
	// back beats failing the consent round trip.
	DefaultUserID = "default"

	// RefreshSafetyMargin is how long before expiry a token is treated as
	// due for renewal. A token handed to a caller must stay valid for the
	// duration of whatever downstream call the caller is about to make;
	// a margin of zero would let tokens expire mid-flight.
	RefreshSafetyMargin = 5 * time.Minute

	// defaultRefreshTimeout bounds a refresh exchange. The flight context
	// is detached from any single caller, so this is its only deadline.
	defaultRefreshTimeout = 30 * time.Second
)

// ErrNoToken indicates the user has no usable credential: either they never
// authorized, or their refresh token was rejected and the record purged.
// Recoverable only by completing the authorization flow again.
var ErrNoToken = errors.New("no token for user")

// Manager orchestrates the token store and the OAuth provider to hand out
// guaranteed-valid access tokens, transparently refreshing and persisting
// renewed ones and purging unrecoverable ones.
//
// Refresh attempts are serialized per user: concurrent callers hitting the
// same near-expiry record share a single in-flight refresh instead of racing
// the same refresh token against the authorization server. Refreshes for
// different users proceed fully in parallel.
type Manager struct {
	store    storage.TokenStore
	provider providers.Provider
	logger   *slog.Logger
	auditor  *security.Auditor
	instr    *instrumentation.Instrumentation

	margin         time.Duration
	refreshTimeout time.Duration

	// now is a test seam for the clock
	now func() time.Time

	// refreshGroup coalesces concurrent refreshes keyed by user ID
	refreshGroup singleflight.Group
}

// New creates a new token lifecycle manager
func New(store storage.TokenStore, provider providers.Provider, logger *slog.Logger) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		store:          store,
		provider:       provider,
		logger:         logger,
		margin:         RefreshSafetyMargin,
		refreshTimeout: defaultRefreshTimeout,
		now:            time.Now,
	}, nil
}

// SetAuditor sets the security auditor
func (m *Manager) SetAuditor(aud *security.Auditor) {
	m.auditor = aud
}

// SetInstrumentation enables metric recording for lifecycle operations
func (m *Manager) SetInstrumentation(instr *instrumentation.Instrumentation) {
	m.instr = instr
}

// AuthorizationResult is returned when an authorization code has been
// exchanged and the initial token pair persisted.
type AuthorizationResult struct {
	UserID      string
	AccessToken string
	ExpiresIn   int64
	TokenType   string
}

// BeginAuthorization builds the consent URL for a user. The returned state
// carries the user ID and a random nonce so the callback can recover which
// user completed the external flow.
func (m *Manager) BeginAuthorization(userID string) (authURL, state string) {
	if userID == "" {
		userID = DefaultUserID
	}

	state = userID + ":" + uuid.NewString()

	if m.instr != nil {
		m.instr.Metrics().AuthorizationStarted.Add(context.Background(), 1)
	}

	return m.provider.AuthorizationURL(state), state
}

// CompleteAuthorization exchanges an authorization code for the initial
// token pair and persists it, keyed by the user ID recovered from state.
// Exchange failures are surfaced to the caller untouched; unlike refresh
// failures there is nothing to clean up and nothing to self-heal.
func (m *Manager) CompleteAuthorization(ctx context.Context, code, state string) (*AuthorizationResult, error) {
	if code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}

	userID := UserIDFromState(state)

	resp, err := m.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	record := m.buildRecord(userID, resp, "")
	if err := m.store.SaveToken(ctx, userID, record); err != nil {
		return nil, err
	}

	m.auditor.LogAuthorizationCompleted(userID, "")
	if m.instr != nil {
		m.instr.Metrics().CodeExchanged.Add(ctx, 1)
	}
	m.logger.Info("Authorization completed", "user_id", userID, "expires_at", record.ExpiresAt)

	return &AuthorizationResult{
		UserID:      userID,
		AccessToken: resp.AccessToken,
		ExpiresIn:   resp.ExpiresIn,
		TokenType:   resp.TokenType,
	}, nil
}

// GetValidToken returns a token record whose access token is valid for at
// least the safety margin. A fresh stored record is returned without any
// network call; a near-expiry or expired record triggers a coalesced
// refresh. ErrNoToken means the caller must re-run the authorization flow;
// storage.ErrStoreUnavailable is propagated distinctly so a transient outage
// is never mistaken for "please re-authorize".
func (m *Manager) GetValidToken(ctx context.Context, userID string) (*storage.TokenRecord, error) {
	if userID == "" {
		userID = DefaultUserID
	}

	record, err := m.store.GetToken(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoToken, userID)
		}
		return nil, err
	}

	if m.fresh(record) {
		return record, nil
	}

	return m.refresh(ctx, userID, false)
}

// ForceRefresh refreshes the user's token regardless of its current expiry,
// with the same success and failure handling as a near-expiry refresh.
func (m *Manager) ForceRefresh(ctx context.Context, userID string) (*storage.TokenRecord, error) {
	if userID == "" {
		userID = DefaultUserID
	}
	return m.refresh(ctx, userID, true)
}

// RevokeToken unconditionally deletes the stored record for a user.
// Idempotent; revoking an absent record succeeds.
func (m *Manager) RevokeToken(ctx context.Context, userID string) error {
	if userID == "" {
		userID = DefaultUserID
	}

	if err := m.store.DeleteToken(ctx, userID); err != nil {
		return err
	}

	m.auditor.LogTokenRevoked(userID, "")
	if m.instr != nil {
		m.instr.Metrics().TokenRevoked.Add(ctx, 1)
	}
	m.logger.Info("Token revoked", "user_id", userID)
	return nil
}

// fresh reports whether the record's access token is still more than the
// safety margin away from expiry.
func (m *Manager) fresh(record *storage.TokenRecord) bool {
	return record.ExpiresAt.After(m.now().Add(m.margin))
}

// refresh runs at most one refresh per user at a time. Concurrent callers
// for the same user wait on the in-flight attempt and share its result.
func (m *Manager) refresh(ctx context.Context, userID string, force bool) (*storage.TokenRecord, error) {
	v, err, shared := m.refreshGroup.Do(userID, func() (interface{}, error) {
		// The flight may be serving several waiters; a single caller
		// hanging up must not cancel it for the others. Detach from the
		// caller's cancellation and bound the flight on its own.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.refreshTimeout)
		defer cancel()
		return m.doRefresh(fctx, userID, force)
	})

	if shared && m.instr != nil {
		m.instr.Metrics().RefreshCoalesced.Add(ctx, 1)
	}
	if err != nil {
		return nil, err
	}
	return v.(*storage.TokenRecord), nil
}

// doRefresh executes one refresh attempt. Runs inside the singleflight.
func (m *Manager) doRefresh(ctx context.Context, userID string, force bool) (*storage.TokenRecord, error) {
	record, err := m.store.GetToken(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoToken, userID)
		}
		return nil, err
	}

	// A caller that waited on a previous flight re-enters here with the
	// record already renewed; don't burn another refresh token round trip.
	if !force && m.fresh(record) {
		return record, nil
	}

	resp, err := m.provider.RefreshToken(ctx, record.RefreshToken)
	if err != nil {
		// A rejected refresh token cannot recover by retrying; purge the
		// record so the user is sent back through the authorization flow.
		m.logger.Warn("Refresh rejected, purging stored token",
			"user_id", userID,
			"error", err)
		m.auditor.LogRefreshFailed(userID, err.Error())
		if m.instr != nil {
			m.instr.Metrics().TokenRefreshFailed.Add(ctx, 1,
				metric.WithAttributes(attribute.Bool("forced", force)))
		}

		if delErr := m.store.DeleteToken(ctx, userID); delErr != nil {
			m.logger.Warn("Failed to purge token record after refresh failure",
				"user_id", userID,
				"error", delErr)
		}
		return nil, fmt.Errorf("%w: refresh rejected: %s", ErrNoToken, userID)
	}

	newRecord := m.buildRecord(userID, resp, record.RefreshToken)
	if err := m.store.SaveToken(ctx, userID, newRecord); err != nil {
		return nil, err
	}

	rotated := resp.RefreshToken != "" && resp.RefreshToken != record.RefreshToken
	m.auditor.LogTokenRefreshed(userID, rotated)
	if m.instr != nil {
		m.instr.Metrics().TokenRefreshed.Add(ctx, 1,
			metric.WithAttributes(attribute.Bool("forced", force)))
	}
	m.logger.Debug("Token refreshed",
		"user_id", userID,
		"rotated", rotated,
		"expires_at", newRecord.ExpiresAt)

	return newRecord, nil
}

// buildRecord assembles the record persisted after a successful exchange or
// refresh. The previous refresh token is retained when the server did not
// supply a new one; its absence never means revocation.
func (m *Manager) buildRecord(userID string, resp *providers.TokenResponse, previousRefreshToken string) *storage.TokenRecord {
	refreshToken := resp.RefreshToken
	if refreshToken == "" {
		refreshToken = previousRefreshToken
	}

	return &storage.TokenRecord{
		UserID:       userID,
		AccessToken:  resp.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    m.now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC(),
	}
}

// UserIDFromState recovers the user ID from the "userID:nonce" state format
// threaded through the authorization redirect. An absent or malformed state
// falls back to DefaultUserID.
func UserIDFromState(state string) string {
	if state == "" {
		return DefaultUserID
	}
	for i := 0; i < len(state); i++ {
		if state[i] == ':' {
			if i == 0 {
				return DefaultUserID
			}
			return state[:i]
		}
	}
	return state
}

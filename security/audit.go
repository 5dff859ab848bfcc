package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	UserID    string
	IPAddress string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"user_id_hash", hashForLogging(event.UserID),
		"ip_address", event.IPAddress,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogAuthorizationCompleted logs a successful authorization-code exchange
func (a *Auditor) LogAuthorizationCompleted(userID, ipAddress string) {
	a.LogEvent(Event{
		Type:      "authorization_completed",
		UserID:    userID,
		IPAddress: ipAddress,
	})
}

// LogTokenRefreshed logs a successful token refresh
func (a *Auditor) LogTokenRefreshed(userID string, rotated bool) {
	a.LogEvent(Event{
		Type:   "token_refreshed",
		UserID: userID,
		Details: map[string]any{
			"rotated": rotated,
		},
	})
}

// LogRefreshFailed logs a refresh rejected by the authorization server.
// The stored record is purged afterwards, so this marks the point where a
// user drops back to "must re-authorize".
func (a *Auditor) LogRefreshFailed(userID, reason string) {
	a.LogEvent(Event{
		Type:   "token_refresh_failed",
		UserID: userID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogTokenRevoked logs an explicit token revocation
func (a *Auditor) LogTokenRevoked(userID, ipAddress string) {
	a.LogEvent(Event{
		Type:      "token_revoked",
		UserID:    userID,
		IPAddress: ipAddress,
	})
}

// hashForLogging hashes sensitive values so audit logs stay correlatable
// without exposing raw identifiers. Returns the first 16 hex characters of
// the SHA-256 digest.
func hashForLogging(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:16]
}

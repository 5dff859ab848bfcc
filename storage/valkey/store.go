package valkey

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/growthtools/snapgate/security"
	"github.com/growthtools/snapgate/storage"
)

const (
	// DefaultKeyPrefix is the default prefix for all Valkey keys
	DefaultKeyPrefix = "snapgate:"

	// DefaultRecordRetention is how long a record is kept beyond its access
	// token expiry. The lifecycle manager, not the store, decides staleness:
	// it needs the record well after the access token has expired to attempt
	// a refresh, so the store-level TTL is deliberately generous.
	DefaultRecordRetention = 90 * 24 * time.Hour

	// connectionVerifyTimeout is the timeout for initial connection verification
	connectionVerifyTimeout = 5 * time.Second

	// MaxIDLength is the maximum allowed length for user identifiers
	MaxIDLength = 256

	// MaxRecordDataSize is the maximum size of a serialized record (64KB)
	MaxRecordDataSize = 64 * 1024
)

// Config holds configuration for the Valkey storage backend.
type Config struct {
	// Address is the Valkey server address (required), e.g., "localhost:6379"
	Address string

	// Password is the optional password for Valkey authentication
	Password string

	// DB is the optional database number (default 0)
	DB int

	// KeyPrefix is the prefix for all keys (default "snapgate:")
	KeyPrefix string

	// TLS is the optional TLS configuration for encrypted connections
	TLS *tls.Config

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger

	// RecordRetention is how long records are kept past their access token
	// expiry (default 90 days). Must be comfortably longer than the refresh
	// token's real lifetime would demand.
	RecordRetention time.Duration
}

// Store is a Valkey-backed implementation of storage.TokenStore.
type Store struct {
	client    valkeygo.Client
	prefix    string
	logger    *slog.Logger
	retention time.Duration

	// encryptor provides optional token encryption at rest.
	// Access must be synchronized via encryptorMu.
	encryptor   *security.Encryptor
	encryptorMu sync.RWMutex
}

// Compile-time interface check
var _ storage.TokenStore = (*Store)(nil)

// New creates a new Valkey-backed storage instance.
// Returns an error if the connection cannot be established.
func New(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retention := cfg.RecordRetention
	if retention <= 0 {
		retention = DefaultRecordRetention
	}

	opts := valkeygo.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	if cfg.TLS != nil {
		opts.TLSConfig = cfg.TLS
	}

	client, err := valkeygo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	logger.Info("Connected to Valkey storage",
		"address", cfg.Address,
		"db", cfg.DB,
		"prefix", prefix)

	return &Store{
		client:    client,
		prefix:    prefix,
		logger:    logger,
		retention: retention,
	}, nil
}

// Close closes the Valkey client connection.
func (s *Store) Close() {
	s.client.Close()
	s.logger.Info("Valkey storage connection closed")
}

// SetLogger sets a custom logger for the store.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetEncryptor sets the token encryptor for encryption at rest.
// When set, access and refresh tokens are encrypted before storing in
// Valkey and decrypted when retrieved.
func (s *Store) SetEncryptor(enc *security.Encryptor) {
	s.encryptorMu.Lock()
	defer s.encryptorMu.Unlock()
	s.encryptor = enc
	if enc.IsEnabled() {
		s.logger.Info("Token encryption at rest enabled for Valkey storage")
	}
}

// getEncryptor returns the current encryptor (thread-safe)
func (s *Store) getEncryptor() *security.Encryptor {
	s.encryptorMu.RLock()
	defer s.encryptorMu.RUnlock()
	return s.encryptor
}

// SaveToken persists the record for a user, replacing any previous one.
// The Valkey-level TTL is set conservatively past the access token expiry;
// freshness decisions always belong to the lifecycle manager.
func (s *Store) SaveToken(ctx context.Context, userID string, record *storage.TokenRecord) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if err := validateStringLength(userID, MaxIDLength, "userID"); err != nil {
		return err
	}

	toStore, err := storage.EncryptRecord(record, s.getEncryptor())
	if err != nil {
		return err
	}

	data, err := json.Marshal(toStore)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if len(data) > MaxRecordDataSize {
		return fmt.Errorf("record exceeds maximum allowed size")
	}

	key := s.tokenKey(userID)

	var execErr error
	if !record.ExpiresAt.IsZero() {
		ttl := time.Until(record.ExpiresAt) + s.retention
		execErr = s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Ex(ttl).Build()).Error()
	} else {
		execErr = s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Build()).Error()
	}

	if execErr != nil {
		return fmt.Errorf("%w: failed to save token record: %v", storage.ErrStoreUnavailable, execErr)
	}

	s.logger.Debug("Saved token record", "user_id", userID, "expires_at", record.ExpiresAt)
	return nil
}

// GetToken retrieves the record for a user and decrypts it if necessary.
// Records are returned even when the access token itself has expired, so
// the lifecycle manager can still attempt a refresh.
func (s *Store) GetToken(ctx context.Context, userID string) (*storage.TokenRecord, error) {
	key := s.tokenKey(userID)

	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrTokenNotFound, userID)
		}
		return nil, fmt.Errorf("%w: failed to get token record: %v", storage.ErrStoreUnavailable, err)
	}

	var record storage.TokenRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token record: %w", err)
	}

	return storage.DecryptRecord(&record, s.getEncryptor())
}

// DeleteToken removes the record for a user. Deleting an absent record succeeds.
func (s *Store) DeleteToken(ctx context.Context, userID string) error {
	key := s.tokenKey(userID)

	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("%w: failed to delete token record: %v", storage.ErrStoreUnavailable, err)
	}

	s.logger.Debug("Deleted token record", "user_id", userID)
	return nil
}

// tokenKey builds the namespaced key for a user's token record
func (s *Store) tokenKey(userID string) string {
	return s.prefix + "token:" + userID
}

// validateStringLength rejects oversized identifiers to bound key sizes
func validateStringLength(value string, max int, name string) error {
	if len(value) > max {
		return fmt.Errorf("%s exceeds maximum length of %d", name, max)
	}
	return nil
}

// isNilError checks if the error indicates a nil/not-found result from Valkey.
// Uses the valkey-go library's built-in nil detection for robustness.
func isNilError(err error) bool {
	return valkeygo.IsValkeyNil(err)
}

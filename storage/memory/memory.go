// Package memory provides an in-memory implementation of the token store.
// It is suitable for development, testing, and single-instance deployments;
// records are lost on restart.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/growthtools/snapgate/instrumentation"
	"github.com/growthtools/snapgate/security"
	"github.com/growthtools/snapgate/storage"
)

// Store is an in-memory implementation of storage.TokenStore.
type Store struct {
	mu      sync.RWMutex
	records map[string]*storage.TokenRecord

	// encryptor provides optional token encryption at rest
	encryptor *security.Encryptor

	// instrumentation is optional; nil disables metric recording
	instr  *instrumentation.Instrumentation
	logger *slog.Logger
}

// Compile-time interface check
var _ storage.TokenStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		records: make(map[string]*storage.TokenRecord),
		logger:  slog.Default(),
	}
}

// SetLogger sets a custom logger for the store
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetEncryptor enables token encryption at rest. When set, access and
// refresh tokens are encrypted before being held in memory and decrypted on
// retrieval.
func (s *Store) SetEncryptor(enc *security.Encryptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encryptor = enc
	if enc.IsEnabled() {
		s.logger.Info("Token encryption at rest enabled for in-memory storage")
	}
}

// SetInstrumentation enables metric recording for store operations
func (s *Store) SetInstrumentation(instr *instrumentation.Instrumentation) {
	s.instr = instr
}

// SaveToken stores the record for a user, replacing any previous one
func (s *Store) SaveToken(ctx context.Context, userID string, record *storage.TokenRecord) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := storage.EncryptRecord(record, s.encryptor)
	if err != nil {
		return err
	}

	// Clone so later caller mutations cannot reach into the store.
	s.records[userID] = stored.Clone()
	s.recordOperation(ctx, "save")
	s.logger.Debug("Saved token record", "user_id", userID, "expires_at", record.ExpiresAt)
	return nil
}

// GetToken retrieves the record for a user
func (s *Store) GetToken(ctx context.Context, userID string) (*storage.TokenRecord, error) {
	s.mu.RLock()
	record, ok := s.records[userID]
	s.mu.RUnlock()

	s.recordOperation(ctx, "get")

	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrTokenNotFound, userID)
	}

	return storage.DecryptRecord(record.Clone(), s.encryptor)
}

// DeleteToken removes the record for a user. Deleting an absent record succeeds.
func (s *Store) DeleteToken(ctx context.Context, userID string) error {
	s.mu.Lock()
	delete(s.records, userID)
	s.mu.Unlock()

	s.recordOperation(ctx, "delete")
	s.logger.Debug("Deleted token record", "user_id", userID)
	return nil
}

// Len returns the number of records currently held
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) recordOperation(ctx context.Context, op string) {
	if s.instr == nil {
		return
	}
	s.instr.Metrics().StorageOperationTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", "memory"),
			attribute.String("operation", op),
		))
}

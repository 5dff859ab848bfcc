// Package mock provides a mock implementation of the TokenStore interface for testing.
package mock

import (
	"context"
	"sync"

	"github.com/growthtools/snapgate/storage"
)

// MockStore is a mock implementation of storage.TokenStore for testing.
// Default behavior is a plain map; individual methods can be overridden via
// the function fields to inject failures.
type MockStore struct {
	// SaveTokenFunc overrides SaveToken when set
	SaveTokenFunc func(ctx context.Context, userID string, record *storage.TokenRecord) error

	// GetTokenFunc overrides GetToken when set
	GetTokenFunc func(ctx context.Context, userID string) (*storage.TokenRecord, error)

	// DeleteTokenFunc overrides DeleteToken when set
	DeleteTokenFunc func(ctx context.Context, userID string) error

	// CallCounts tracks how many times each method was called
	CallCounts map[string]int

	mu      sync.Mutex
	records map[string]*storage.TokenRecord
}

// NewMockStore creates a new mock store backed by an in-memory map
func NewMockStore() *MockStore {
	return &MockStore{
		CallCounts: make(map[string]int),
		records:    make(map[string]*storage.TokenRecord),
	}
}

// SaveToken implements storage.TokenStore
func (m *MockStore) SaveToken(ctx context.Context, userID string, record *storage.TokenRecord) error {
	m.count("SaveToken")
	if m.SaveTokenFunc != nil {
		return m.SaveTokenFunc(ctx, userID, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = record.Clone()
	return nil
}

// GetToken implements storage.TokenStore
func (m *MockStore) GetToken(ctx context.Context, userID string) (*storage.TokenRecord, error) {
	m.count("GetToken")
	if m.GetTokenFunc != nil {
		return m.GetTokenFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[userID]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	return record.Clone(), nil
}

// DeleteToken implements storage.TokenStore
func (m *MockStore) DeleteToken(ctx context.Context, userID string) error {
	m.count("DeleteToken")
	if m.DeleteTokenFunc != nil {
		return m.DeleteTokenFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, userID)
	return nil
}

// GetCallCount returns how many times the given method was called
func (m *MockStore) GetCallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCounts[method]
}

func (m *MockStore) count(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts[method]++
}

// Compile-time interface check
var _ storage.TokenStore = (*MockStore)(nil)

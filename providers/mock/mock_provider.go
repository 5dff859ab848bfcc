// Package mock provides a mock implementation of the Provider interface for testing.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/growthtools/snapgate/providers"
)

// MockProvider is a mock implementation of the Provider interface for testing
type MockProvider struct {
	// NameFunc is called when Name() is invoked
	NameFunc func() string

	// AuthorizationURLFunc is called when AuthorizationURL() is invoked
	AuthorizationURLFunc func(state string) string

	// ExchangeCodeFunc is called when ExchangeCode() is invoked
	ExchangeCodeFunc func(ctx context.Context, code string) (*providers.TokenResponse, error)

	// RefreshTokenFunc is called when RefreshToken() is invoked
	RefreshTokenFunc func(ctx context.Context, refreshToken string) (*providers.TokenResponse, error)

	// CallCounts tracks how many times each method was called
	CallCounts map[string]int

	// mu protects CallCounts from concurrent access
	mu sync.RWMutex
}

// NewMockProvider creates a new mock provider with default implementations
func NewMockProvider() *MockProvider {
	return &MockProvider{
		CallCounts: make(map[string]int),
		NameFunc: func() string {
			return "mock"
		},
		AuthorizationURLFunc: func(state string) string {
			return fmt.Sprintf("https://mock.example.com/authorize?state=%s", state)
		},
		ExchangeCodeFunc: func(ctx context.Context, code string) (*providers.TokenResponse, error) {
			return &providers.TokenResponse{
				AccessToken:  "mock-access-token",
				RefreshToken: "mock-refresh-token",
				ExpiresIn:    3600,
				TokenType:    "Bearer",
			}, nil
		},
		RefreshTokenFunc: func(ctx context.Context, refreshToken string) (*providers.TokenResponse, error) {
			return &providers.TokenResponse{
				AccessToken:  "new-mock-access-token",
				RefreshToken: "new-mock-refresh-token",
				ExpiresIn:    3600,
				TokenType:    "Bearer",
			}, nil
		},
	}
}

// Name implements providers.Provider
func (m *MockProvider) Name() string {
	m.incrementCallCount("Name")
	return m.NameFunc()
}

// AuthorizationURL implements providers.Provider
func (m *MockProvider) AuthorizationURL(state string) string {
	m.incrementCallCount("AuthorizationURL")
	return m.AuthorizationURLFunc(state)
}

// ExchangeCode implements providers.Provider
func (m *MockProvider) ExchangeCode(ctx context.Context, code string) (*providers.TokenResponse, error) {
	m.incrementCallCount("ExchangeCode")
	return m.ExchangeCodeFunc(ctx, code)
}

// RefreshToken implements providers.Provider
func (m *MockProvider) RefreshToken(ctx context.Context, refreshToken string) (*providers.TokenResponse, error) {
	m.incrementCallCount("RefreshToken")
	return m.RefreshTokenFunc(ctx, refreshToken)
}

// GetCallCount returns how many times the given method was called
func (m *MockProvider) GetCallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CallCounts[method]
}

// ResetCallCounts clears all recorded call counts
func (m *MockProvider) ResetCallCounts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts = make(map[string]int)
}

func (m *MockProvider) incrementCallCount(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts[method]++
}

// Compile-time interface check
var _ providers.Provider = (*MockProvider)(nil)

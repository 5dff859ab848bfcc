package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/growthtools/snapgate/providers"
	providermock "github.com/growthtools/snapgate/providers/mock"
	"github.com/growthtools/snapgate/storage"
	"github.com/growthtools/snapgate/storage/memory"
	storagemock "github.com/growthtools/snapgate/storage/mock"
)

func newTestManager(t *testing.T) (*Manager, *memory.Store, *providermock.MockProvider) {
	t.Helper()

	store := memory.New()
	provider := providermock.NewMockProvider()

	mgr, err := New(store, provider, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return mgr, store, provider
}

func seedToken(t *testing.T, store storage.TokenStore, userID string, expiresAt time.Time) *storage.TokenRecord {
	t.Helper()

	record := &storage.TokenRecord{
		UserID:       userID,
		AccessToken:  "stored-access-token",
		RefreshToken: "stored-refresh-token",
		ExpiresAt:    expiresAt,
	}
	if err := store.SaveToken(context.Background(), userID, record); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}
	return record
}

func TestNew_RequiresStoreAndProvider(t *testing.T) {
	provider := providermock.NewMockProvider()

	if _, err := New(nil, provider, nil); err == nil {
		t.Error("New() with nil store should fail")
	}
	if _, err := New(memory.New(), nil, nil); err == nil {
		t.Error("New() with nil provider should fail")
	}
}

func TestBeginAuthorization(t *testing.T) {
	mgr, _, provider := newTestManager(t)

	authURL, state := mgr.BeginAuthorization("user42")

	if !strings.HasPrefix(state, "user42:") {
		t.Errorf("state = %q, want user42: prefix", state)
	}
	nonce := strings.TrimPrefix(state, "user42:")
	if _, err := uuid.Parse(nonce); err != nil {
		t.Errorf("state nonce %q is not a UUID: %v", nonce, err)
	}
	if !strings.Contains(authURL, "state="+state) {
		t.Errorf("authURL = %q, does not carry state %q", authURL, state)
	}
	if got := provider.GetCallCount("AuthorizationURL"); got != 1 {
		t.Errorf("AuthorizationURL call count = %d, want 1", got)
	}
}

func TestBeginAuthorization_EmptyUserID(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	_, state := mgr.BeginAuthorization("")

	if !strings.HasPrefix(state, DefaultUserID+":") {
		t.Errorf("state = %q, want %q prefix", state, DefaultUserID+":")
	}
}

func TestBeginAuthorization_StatesAreUnique(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	_, first := mgr.BeginAuthorization("user42")
	_, second := mgr.BeginAuthorization("user42")

	if first == second {
		t.Errorf("two authorization states are identical: %q", first)
	}
}

func TestCompleteAuthorization(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	ctx := context.Background()

	result, err := mgr.CompleteAuthorization(ctx, "auth-code", "user42:abcxyz")
	if err != nil {
		t.Fatalf("CompleteAuthorization() error = %v", err)
	}

	if result.UserID != "user42" {
		t.Errorf("UserID = %q, want user42", result.UserID)
	}
	if result.AccessToken != "mock-access-token" {
		t.Errorf("AccessToken = %q, want mock-access-token", result.AccessToken)
	}
	if result.ExpiresIn != 3600 {
		t.Errorf("ExpiresIn = %d, want 3600", result.ExpiresIn)
	}
	if result.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want Bearer", result.TokenType)
	}

	record, err := store.GetToken(ctx, "user42")
	if err != nil {
		t.Fatalf("GetToken() after authorization error = %v", err)
	}
	if record.RefreshToken != "mock-refresh-token" {
		t.Errorf("stored RefreshToken = %q, want mock-refresh-token", record.RefreshToken)
	}
	if record.ExpiresAt.Before(time.Now().Add(55 * time.Minute)) {
		t.Errorf("stored ExpiresAt = %v, want roughly an hour out", record.ExpiresAt)
	}
}

func TestCompleteAuthorization_EmptyCode(t *testing.T) {
	mgr, _, provider := newTestManager(t)

	if _, err := mgr.CompleteAuthorization(context.Background(), "", "user42:abcxyz"); err == nil {
		t.Error("CompleteAuthorization() with empty code should fail")
	}
	if got := provider.GetCallCount("ExchangeCode"); got != 0 {
		t.Errorf("ExchangeCode call count = %d, want 0", got)
	}
}

func TestCompleteAuthorization_ExchangeFailurePropagates(t *testing.T) {
	mgr, store, provider := newTestManager(t)
	upstream := &providers.UpstreamError{StatusCode: 400, Body: []byte("invalid_grant")}
	provider.ExchangeCodeFunc = func(ctx context.Context, code string) (*providers.TokenResponse, error) {
		return nil, upstream
	}

	_, err := mgr.CompleteAuthorization(context.Background(), "bad-code", "user42:abcxyz")

	var ue *providers.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("error = %v, want *providers.UpstreamError", err)
	}
	if _, err := store.GetToken(context.Background(), "user42"); !errors.Is(err, storage.ErrTokenNotFound) {
		t.Errorf("a failed exchange must not persist a record, GetToken error = %v", err)
	}
}

func TestGetValidToken_NoRecord(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	_, err := mgr.GetValidToken(context.Background(), "user42")
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("error = %v, want ErrNoToken", err)
	}
}

func TestGetValidToken_Fresh(t *testing.T) {
	mgr, store, provider := newTestManager(t)
	seeded := seedToken(t, store, "user42", time.Now().Add(time.Hour))

	record, err := mgr.GetValidToken(context.Background(), "user42")
	if err != nil {
		t.Fatalf("GetValidToken() error = %v", err)
	}
	if record.AccessToken != seeded.AccessToken {
		t.Errorf("AccessToken = %q, want %q", record.AccessToken, seeded.AccessToken)
	}
	if got := provider.GetCallCount("RefreshToken"); got != 0 {
		t.Errorf("RefreshToken call count = %d, fresh token must not trigger a refresh", got)
	}
}

func TestGetValidToken_NearExpiryTriggersRefresh(t *testing.T) {
	mgr, store, provider := newTestManager(t)
	// inside the safety margin but not yet expired
	seedToken(t, store, "user42", time.Now().Add(2*time.Minute))

	record, err := mgr.GetValidToken(context.Background(), "user42")
	if err != nil {
		t.Fatalf("GetValidToken() error = %v", err)
	}
	if record.AccessToken != "new-mock-access-token" {
		t.Errorf("AccessToken = %q, want new-mock-access-token", record.AccessToken)
	}
	if got := provider.GetCallCount("RefreshToken"); got != 1 {
		t.Errorf("RefreshToken call count = %d, want 1", got)
	}

	stored, err := store.GetToken(context.Background(), "user42")
	if err != nil {
		t.Fatalf("GetToken() after refresh error = %v", err)
	}
	if stored.AccessToken != "new-mock-access-token" {
		t.Errorf("refreshed token was not persisted, stored AccessToken = %q", stored.AccessToken)
	}
}

func TestGetValidToken_RefreshRetainsPriorRefreshToken(t *testing.T) {
	mgr, store, provider := newTestManager(t)
	seedToken(t, store, "user42", time.Now().Add(time.Minute))
	provider.RefreshTokenFunc = func(ctx context.Context, refreshToken string) (*providers.TokenResponse, error) {
		// server renews the access token but stays silent on the refresh token
		return &providers.TokenResponse{
			AccessToken: "renewed-access-token",
			ExpiresIn:   1800,
			TokenType:   "Bearer",
		}, nil
	}

	record, err := mgr.GetValidToken(context.Background(), "user42")
	if err != nil {
		t.Fatalf("GetValidToken() error = %v", err)
	}
	if record.AccessToken != "renewed-access-token" {
		t.Errorf("AccessToken = %q, want renewed-access-token", record.AccessToken)
	}
	if record.RefreshToken != "stored-refresh-token" {
		t.Errorf("RefreshToken = %q, want the prior stored-refresh-token retained", record.RefreshToken)
	}

	stored, err := store.GetToken(context.Background(), "user42")
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if stored.RefreshToken != "stored-refresh-token" {
		t.Errorf("persisted RefreshToken = %q, want stored-refresh-token", stored.RefreshToken)
	}
}

func TestGetValidToken_RefreshUsesStoredRefreshToken(t *testing.T) {
	mgr, store, provider := newTestManager(t)
	seedToken(t, store, "user42", time.Now().Add(time.Minute))

	var gotRefreshToken string
	provider.RefreshTokenFunc = func(ctx context.Context, refreshToken string) (*providers.TokenResponse, error) {
		gotRefreshToken = refreshToken
		return &providers.TokenResponse{AccessToken: "renewed", RefreshToken: "rotated", ExpiresIn: 3600, TokenType: "Bearer"}, nil
	}

	if _, err := mgr.GetValidToken(context.Background(), "user42"); err != nil {
		t.Fatalf("GetValidToken() error = %v", err)
	}
	if gotRefreshToken != "stored-refresh-token" {
		t.Errorf("refresh used token %q, want stored-refresh-token", gotRefreshToken)
	}
}

func TestGetValidToken_RefreshFailurePurgesRecord(t *testing.T) {
	mgr, store, provider := newTestManager(t)
	seedToken(t, store, "user42", time.Now().Add(-time.Minute))
	provider.RefreshTokenFunc = func(ctx context.Context, refreshToken string) (*providers.TokenResponse, error) {
		return nil, &providers.UpstreamError{StatusCode: 400, Body: []byte("invalid_grant")}
	}

	_, err := mgr.GetValidToken(context.Background(), "user42")
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("error = %v, want ErrNoToken", err)
	}

	if _, err := store.GetToken(context.Background(), "user42"); !errors.Is(err, storage.ErrTokenNotFound) {
		t.Errorf("record must be purged after a rejected refresh, GetToken error = %v", err)
	}

	// the next call sees no record at all, not another refresh attempt
	provider.ResetCallCounts()
	if _, err := mgr.GetValidToken(context.Background(), "user42"); !errors.Is(err, ErrNoToken) {
		t.Errorf("second call error = %v, want ErrNoToken", err)
	}
	if got := provider.GetCallCount("RefreshToken"); got != 0 {
		t.Errorf("RefreshToken call count after purge = %d, want 0", got)
	}
}

func TestGetValidToken_StoreUnavailable(t *testing.T) {
	store := storagemock.NewMockStore()
	store.GetTokenFunc = func(ctx context.Context, userID string) (*storage.TokenRecord, error) {
		return nil, fmt.Errorf("%w: connection refused", storage.ErrStoreUnavailable)
	}
	mgr, err := New(store, providermock.NewMockProvider(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = mgr.GetValidToken(context.Background(), "user42")
	if !errors.Is(err, storage.ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
	if errors.Is(err, ErrNoToken) {
		t.Error("a store outage must not be reported as a missing token")
	}
}

func TestGetValidToken_ConcurrentCallersShareOneRefresh(t *testing.T) {
	mgr, store, provider := newTestManager(t)
	seedToken(t, store, "user42", time.Now().Add(time.Minute))

	release := make(chan struct{})
	provider.RefreshTokenFunc = func(ctx context.Context, refreshToken string) (*providers.TokenResponse, error) {
		<-release
		return &providers.TokenResponse{AccessToken: "renewed", RefreshToken: "rotated", ExpiresIn: 3600, TokenType: "Bearer"}, nil
	}

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	tokens := make([]string, callers)

	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			record, err := mgr.GetValidToken(context.Background(), "user42")
			errs[i] = err
			if record != nil {
				tokens[i] = record.AccessToken
			}
		}(i)
	}

	// give every caller a chance to pile onto the in-flight refresh
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if tokens[i] != "renewed" {
			t.Errorf("caller %d got AccessToken %q, want renewed", i, tokens[i])
		}
	}
	if got := provider.GetCallCount("RefreshToken"); got != 1 {
		t.Errorf("RefreshToken call count = %d, want exactly 1 shared refresh", got)
	}
}

func TestGetValidToken_RefreshSurvivesCallerCancellation(t *testing.T) {
	mgr, store, provider := newTestManager(t)
	seedToken(t, store, "user42", time.Now().Add(time.Minute))

	provider.RefreshTokenFunc = func(ctx context.Context, refreshToken string) (*providers.TokenResponse, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
			return &providers.TokenResponse{AccessToken: "renewed", RefreshToken: "rotated", ExpiresIn: 3600, TokenType: "Bearer"}, nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// the caller's context is already dead, the detached flight still completes
	record, err := mgr.GetValidToken(ctx, "user42")
	if err != nil {
		t.Fatalf("GetValidToken() error = %v", err)
	}
	if record.AccessToken != "renewed" {
		t.Errorf("AccessToken = %q, want renewed", record.AccessToken)
	}
}

func TestForceRefresh_RefreshesFreshToken(t *testing.T) {
	mgr, store, provider := newTestManager(t)
	seedToken(t, store, "user42", time.Now().Add(time.Hour))

	record, err := mgr.ForceRefresh(context.Background(), "user42")
	if err != nil {
		t.Fatalf("ForceRefresh() error = %v", err)
	}
	if record.AccessToken != "new-mock-access-token" {
		t.Errorf("AccessToken = %q, want new-mock-access-token", record.AccessToken)
	}
	if got := provider.GetCallCount("RefreshToken"); got != 1 {
		t.Errorf("RefreshToken call count = %d, want 1", got)
	}
}

func TestForceRefresh_NoRecord(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	if _, err := mgr.ForceRefresh(context.Background(), "user42"); !errors.Is(err, ErrNoToken) {
		t.Errorf("error = %v, want ErrNoToken", err)
	}
}

func TestRevokeToken(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	seedToken(t, store, "user42", time.Now().Add(time.Hour))

	if err := mgr.RevokeToken(context.Background(), "user42"); err != nil {
		t.Fatalf("RevokeToken() error = %v", err)
	}
	if _, err := store.GetToken(context.Background(), "user42"); !errors.Is(err, storage.ErrTokenNotFound) {
		t.Errorf("record still present after revoke, GetToken error = %v", err)
	}

	// revoking again is a no-op, not an error
	if err := mgr.RevokeToken(context.Background(), "user42"); err != nil {
		t.Errorf("second RevokeToken() error = %v", err)
	}
}

func TestUserIDFromState(t *testing.T) {
	tests := []struct {
		name  string
		state string
		want  string
	}{
		{"user and nonce", "user42:abcxyz", "user42"},
		{"empty state", "", DefaultUserID},
		{"leading colon", ":abcxyz", DefaultUserID},
		{"no colon", "user42", "user42"},
		{"extra colons", "user42:a:b", "user42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserIDFromState(tt.state); got != tt.want {
				t.Errorf("UserIDFromState(%q) = %q, want %q", tt.state, got, tt.want)
			}
		})
	}
}

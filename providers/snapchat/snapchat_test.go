package snapchat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"

	"github.com/growthtools/snapgate/providers"
)

// newTestProvider points the provider at a local token endpoint
func newTestProvider(t *testing.T, tokenHandler http.HandlerFunc) *Provider {
	t.Helper()

	srv := httptest.NewServer(tokenHandler)
	t.Cleanup(srv.Close)

	endpoint := &oauth2.Endpoint{
		AuthURL:   srv.URL + "/authorize",
		TokenURL:  srv.URL + "/access_token",
		AuthStyle: oauth2.AuthStyleInParams,
	}

	provider, err := NewProvider(&Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://example.com/api/auth/callback",
		Endpoint:     endpoint,
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	return provider
}

func tokenJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func TestNewProvider_Validation(t *testing.T) {
	if _, err := NewProvider(&Config{ClientSecret: "s"}); err == nil {
		t.Error("NewProvider() without client ID should fail")
	}
	if _, err := NewProvider(&Config{ClientID: "i"}); err == nil {
		t.Error("NewProvider() without client secret should fail")
	}
}

func TestProvider_Name(t *testing.T) {
	provider, err := NewProvider(&Config{ClientID: "i", ClientSecret: "s"})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if got := provider.Name(); got != "snapchat" {
		t.Errorf("Name() = %q, want snapchat", got)
	}
}

func TestAuthorizationURL(t *testing.T) {
	provider, err := NewProvider(&Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://example.com/api/auth/callback",
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	authURL := provider.AuthorizationURL("user42:nonce")

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("AuthorizationURL() is not a valid URL: %v", err)
	}
	if parsed.Host != "accounts.snapchat.com" {
		t.Errorf("host = %q, want accounts.snapchat.com", parsed.Host)
	}

	query := parsed.Query()
	if got := query.Get("client_id"); got != "client-id" {
		t.Errorf("client_id = %q", got)
	}
	if got := query.Get("redirect_uri"); got != "https://example.com/api/auth/callback" {
		t.Errorf("redirect_uri = %q", got)
	}
	if got := query.Get("response_type"); got != "code" {
		t.Errorf("response_type = %q, want code", got)
	}
	if got := query.Get("scope"); got != DefaultScope {
		t.Errorf("scope = %q, want %q", got, DefaultScope)
	}
	if got := query.Get("state"); got != "user42:nonce" {
		t.Errorf("state = %q, want user42:nonce", got)
	}
}

func TestAuthorizationURL_EmptyStateGetsRandom(t *testing.T) {
	provider, _ := NewProvider(&Config{ClientID: "i", ClientSecret: "s"})

	first, _ := url.Parse(provider.AuthorizationURL(""))
	second, _ := url.Parse(provider.AuthorizationURL(""))

	if first.Query().Get("state") == "" {
		t.Error("empty input produced an empty state parameter")
	}
	if first.Query().Get("state") == second.Query().Get("state") {
		t.Error("two generated states are identical")
	}
}

func TestExchangeCode(t *testing.T) {
	var gotCode, gotGrantType string
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotCode = r.FormValue("code")
		gotGrantType = r.FormValue("grant_type")
		tokenJSON(w, `{"access_token":"at-1","refresh_token":"rt-1","expires_in":1800,"token_type":"Bearer"}`)
	})

	resp, err := provider.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if gotCode != "auth-code" {
		t.Errorf("code sent = %q, want auth-code", gotCode)
	}
	if gotGrantType != "authorization_code" {
		t.Errorf("grant_type = %q, want authorization_code", gotGrantType)
	}
	if resp.AccessToken != "at-1" || resp.RefreshToken != "rt-1" {
		t.Errorf("response = %+v", resp)
	}
	if resp.ExpiresIn < 1790 || resp.ExpiresIn > 1800 {
		t.Errorf("ExpiresIn = %d, want about 1800", resp.ExpiresIn)
	}
	if resp.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want Bearer", resp.TokenType)
	}
}

func TestExchangeCode_UpstreamRejection(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	_, err := provider.ExchangeCode(context.Background(), "bad-code")

	var upstream *providers.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("error = %v, want *providers.UpstreamError", err)
	}
	if upstream.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", upstream.StatusCode)
	}
}

func TestExchangeCode_MalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing access_token", `{"refresh_token":"rt","expires_in":3600}`},
		{"missing expires_in", `{"access_token":"at","refresh_token":"rt"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				tokenJSON(w, tt.body)
			})

			_, err := provider.ExchangeCode(context.Background(), "code")

			var decode *providers.DecodeError
			if !errors.As(err, &decode) {
				t.Errorf("error = %v, want *providers.DecodeError", err)
			}
		})
	}
}

func TestRefreshToken(t *testing.T) {
	var gotRefreshToken, gotGrantType string
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotRefreshToken = r.FormValue("refresh_token")
		gotGrantType = r.FormValue("grant_type")
		tokenJSON(w, `{"access_token":"at-2","refresh_token":"rt-2","expires_in":1800,"token_type":"Bearer"}`)
	})

	resp, err := provider.RefreshToken(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}

	if gotRefreshToken != "rt-1" {
		t.Errorf("refresh_token sent = %q, want rt-1", gotRefreshToken)
	}
	if gotGrantType != "refresh_token" {
		t.Errorf("grant_type = %q, want refresh_token", gotGrantType)
	}
	if resp.AccessToken != "at-2" || resp.RefreshToken != "rt-2" {
		t.Errorf("response = %+v", resp)
	}
}

func TestRefreshToken_Rejected(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	})

	_, err := provider.RefreshToken(context.Background(), "revoked-token")

	var upstream *providers.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("error = %v, want *providers.UpstreamError", err)
	}
	if upstream.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", upstream.StatusCode)
	}
}

func TestRefreshToken_ServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	endpoint := &oauth2.Endpoint{
		AuthURL:   srv.URL + "/authorize",
		TokenURL:  srv.URL + "/access_token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	provider, err := NewProvider(&Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint:     endpoint,
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	_, err = provider.RefreshToken(context.Background(), "rt-1")
	if err == nil {
		t.Fatal("RefreshToken() against a closed server should fail")
	}

	// transport failures are not upstream rejections
	var upstream *providers.UpstreamError
	if errors.As(err, &upstream) {
		t.Errorf("transport failure classified as UpstreamError: %v", err)
	}
}

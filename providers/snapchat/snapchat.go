package snapchat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/growthtools/snapgate/providers"
)

// Endpoint is the Snapchat accounts OAuth2 endpoint. Client credentials are
// sent in the request body, which is what accounts.snapchat.com expects.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.snapchat.com/login/oauth2/authorize",
	TokenURL:  "https://accounts.snapchat.com/login/oauth2/access_token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// DefaultScope is the Marketing API scope requested when none is configured.
const DefaultScope = "snapchat-marketing-api"

// Provider implements providers.Provider for Snapchat OAuth.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// Config holds Snapchat OAuth configuration
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// HTTPClient is an optional custom HTTP client. The default client
	// carries a 30 second timeout so a stalled authorization server cannot
	// stall callers indefinitely.
	HTTPClient *http.Client

	// Endpoint overrides the Snapchat endpoint, used in tests to point at
	// a local server.
	Endpoint *oauth2.Endpoint
}

// NewProvider creates a new Snapchat OAuth provider
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{DefaultScope}
	}

	endpoint := Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		httpClient: httpClient,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "snapchat"
}

// AuthorizationURL generates the Snapchat OAuth authorization URL.
// An empty state is replaced with a cryptographically random one so the
// redirect round trip is never left without CSRF correlation.
func (p *Provider) AuthorizationURL(state string) string {
	if state == "" {
		state = oauth2.GenerateVerifier()
	}
	return p.config.AuthCodeURL(state)
}

// ExchangeCode exchanges an authorization code for the initial token pair
func (p *Provider) ExchangeCode(ctx context.Context, code string) (*providers.TokenResponse, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, classifyTokenError(err)
	}

	return toTokenResponse(token)
}

// RefreshToken mints a new access token from a refresh token
func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (*providers.TokenResponse, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	source := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	token, err := source.Token()
	if err != nil {
		return nil, classifyTokenError(err)
	}

	return toTokenResponse(token)
}

// toTokenResponse converts an oauth2.Token into the provider-neutral
// response, validating the invariants a successful token response must hold.
func toTokenResponse(token *oauth2.Token) (*providers.TokenResponse, error) {
	if token.AccessToken == "" {
		return nil, &providers.DecodeError{Reason: "response missing access_token"}
	}
	if token.Expiry.IsZero() {
		return nil, &providers.DecodeError{Reason: "response missing expires_in"}
	}

	expiresIn := int64(time.Until(token.Expiry).Round(time.Second) / time.Second)
	if expiresIn <= 0 {
		return nil, &providers.DecodeError{Reason: "response carried non-positive expires_in"}
	}

	return &providers.TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    expiresIn,
		TokenType:    token.TokenType,
	}, nil
}

// classifyTokenError maps golang.org/x/oauth2 failures onto the provider
// error kinds: non-2xx statuses become UpstreamError, transport failures are
// passed through wrapped, and everything else (unparseable bodies) becomes
// DecodeError.
func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &providers.UpstreamError{
			StatusCode: status,
			Body:       retrieveErr.Body,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("token endpoint request failed: %w", err)
	}

	return &providers.DecodeError{Reason: "token endpoint response", Err: err}
}

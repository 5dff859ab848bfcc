// Package segments is a thin client for the Snapchat Marketing API segment
// endpoints. Responses are passed through verbatim, status code and body
// alike, so callers see exactly what the upstream API said.
package segments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/growthtools/snapgate/providers"
)

const (
	// DefaultBaseURL is the production Snapchat Marketing API endpoint
	DefaultBaseURL = "https://adsapi.snapchat.com/v1"

	// DefaultSourceType is applied to segments that do not name one
	DefaultSourceType = "FIRST_PARTY"

	defaultTimeout = 30 * time.Second
)

// Segment describes an audience segment to create
type Segment struct {
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	SourceType      string `json:"source_type"`
	RetentionInDays int    `json:"retention_in_days"`
	AdAccountID     string `json:"ad_account_id"`
}

// UserUpload is one batch of identifiers to add to a segment. Schema names
// the identifier columns (for example EMAIL_SHA256) and each entry of Data
// is one row of values in schema order. Values are expected to be hashed
// already; nothing here hashes for the caller.
type UserUpload struct {
	Schema []string   `json:"schema"`
	Data   [][]string `json:"data"`
}

// Result is the upstream response, passed through untouched
type Result struct {
	StatusCode int
	Body       []byte
}

// Client calls the segment endpoints with a caller-supplied access token
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the client
type Option func(*Client)

// WithBaseURL overrides the API base URL, mainly for tests
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a segment API client
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSegments creates one or more segments under an ad account. The ad
// account is taken from the first segment; every segment in one call must
// belong to the same account because the upstream route is account-scoped.
func (c *Client) CreateSegments(ctx context.Context, accessToken string, segs []Segment) (*Result, error) {
	if len(segs) == 0 {
		return nil, fmt.Errorf("at least one segment is required")
	}
	adAccountID := segs[0].AdAccountID
	if adAccountID == "" {
		return nil, fmt.Errorf("ad_account_id is required on the first segment")
	}

	body := make([]Segment, len(segs))
	for i, s := range segs {
		if s.SourceType == "" {
			s.SourceType = DefaultSourceType
		}
		body[i] = s
	}

	path := fmt.Sprintf("/adaccounts/%s/segments", url.PathEscape(adAccountID))
	return c.do(ctx, http.MethodPost, path, accessToken, map[string]any{"segments": body})
}

// ListSegments lists all segments under an ad account
func (c *Client) ListSegments(ctx context.Context, accessToken, adAccountID string) (*Result, error) {
	if adAccountID == "" {
		return nil, fmt.Errorf("ad account ID is required")
	}
	path := fmt.Sprintf("/adaccounts/%s/segments", url.PathEscape(adAccountID))
	return c.do(ctx, http.MethodGet, path, accessToken, nil)
}

// GetSegment fetches a single segment by ID
func (c *Client) GetSegment(ctx context.Context, accessToken, segmentID string) (*Result, error) {
	if segmentID == "" {
		return nil, fmt.Errorf("segment ID is required")
	}
	path := fmt.Sprintf("/segments/%s", url.PathEscape(segmentID))
	return c.do(ctx, http.MethodGet, path, accessToken, nil)
}

// AddUsers adds batches of hashed identifiers to a segment
func (c *Client) AddUsers(ctx context.Context, accessToken, segmentID string, uploads []UserUpload) (*Result, error) {
	if segmentID == "" {
		return nil, fmt.Errorf("segment ID is required")
	}
	if len(uploads) == 0 {
		return nil, fmt.Errorf("at least one user upload is required")
	}
	path := fmt.Sprintf("/segments/%s/users", url.PathEscape(segmentID))
	return c.do(ctx, http.MethodPost, path, accessToken, map[string]any{"users": uploads})
}

// RemoveAllUsers removes every user from a segment without deleting it
func (c *Client) RemoveAllUsers(ctx context.Context, accessToken, segmentID string) (*Result, error) {
	if segmentID == "" {
		return nil, fmt.Errorf("segment ID is required")
	}
	path := fmt.Sprintf("/segments/%s/all_users", url.PathEscape(segmentID))
	return c.do(ctx, http.MethodDelete, path, accessToken, nil)
}

// DeleteSegment deletes a segment
func (c *Client) DeleteSegment(ctx context.Context, accessToken, segmentID string) (*Result, error) {
	if segmentID == "" {
		return nil, fmt.Errorf("segment ID is required")
	}
	path := fmt.Sprintf("/segments/%s", url.PathEscape(segmentID))
	return c.do(ctx, http.MethodDelete, path, accessToken, nil)
}

// do sends one request and captures the upstream response verbatim. Only
// transport-level failures return an error; upstream 4xx/5xx responses are
// normal Results for the caller to relay.
func (c *Client) do(ctx context.Context, method, path, accessToken string, payload any) (*Result, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("segment API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.DecodeError{Reason: "failed to read segment API response", Err: err}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		c.logger.Warn("Segment API server error",
			"method", method,
			"path", path,
			"status", resp.StatusCode)
	}

	return &Result{StatusCode: resp.StatusCode, Body: data}, nil
}

package snapgate

import (
	"log/slog"
	"net/http"
)

// Storage backend names accepted in StorageConfig.Backend
const (
	BackendMemory = "memory"
	BackendValkey = "valkey"
)

// Config holds the service configuration
type Config struct {
	// SnapchatAuth holds the Snapchat OAuth app credentials
	SnapchatAuth SnapchatAuthConfig

	// Storage selects and configures the token storage backend
	Storage StorageConfig

	// RateLimit configures per-IP rate limiting on the auth endpoints
	RateLimit RateLimitConfig

	// Security settings
	Security SecurityConfig

	// SegmentsBaseURL overrides the Marketing API base URL.
	// Default: the production endpoint.
	SegmentsBaseURL string

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// HTTPClient is a custom HTTP client for upstream requests.
	// Used for both the token endpoints and the segment API.
	HTTPClient *http.Client
}

// SnapchatAuthConfig holds the Snapchat OAuth credentials and settings
type SnapchatAuthConfig struct {
	// ClientID is the Snapchat OAuth app client ID (required).
	ClientID string

	// ClientSecret is the Snapchat OAuth app client secret (required).
	ClientSecret string

	// RedirectURL is where Snapchat redirects after consent (required).
	// Must exactly match a redirect URI registered on the OAuth app.
	RedirectURL string

	// Scopes override the requested scopes.
	// Default: snapchat-marketing-api.
	Scopes []string
}

// StorageConfig selects the token storage backend
type StorageConfig struct {
	// Backend is "memory" or "valkey". Default: "memory".
	Backend string

	// ValkeyAddress is the host:port of the Valkey server.
	// Required when Backend is "valkey".
	ValkeyAddress string

	// ValkeyPassword authenticates to Valkey. Optional.
	ValkeyPassword string

	// ValkeyDB selects the Valkey database number.
	ValkeyDB int

	// ValkeyKeyPrefix namespaces keys. Default: "snapgate:".
	ValkeyKeyPrefix string

	// ValkeyTLS enables TLS on the Valkey connection.
	ValkeyTLS bool
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Rate is requests per second allowed per IP. Zero disables limiting.
	Rate int

	// Burst is the maximum burst size allowed per IP.
	Burst int

	// TrustProxy enables trusting X-Forwarded-For and X-Real-IP headers.
	// Only enable behind a trusted reverse proxy.
	TrustProxy bool
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	// EncryptionKey is the AES-256 key (32 bytes) for token encryption at
	// rest. Nil disables encryption. Generate with GenerateEncryptionKey().
	EncryptionKey []byte

	// EnableAuditLogging enables security audit logging.
	// Logs auth events and token operations with sensitive values hashed.
	EnableAuditLogging bool
}

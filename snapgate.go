// Package snapgate is an HTTP service that brokers OAuth2 credentials for
// the Snapchat Marketing API. It owns the token lifecycle end to end:
// callers ask for a valid access token and the service acquires, persists,
// and transparently renews token pairs per user, proxying segment
// operations with the managed credential.
package snapgate

import (
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/growthtools/snapgate/auth"
	"github.com/growthtools/snapgate/instrumentation"
	"github.com/growthtools/snapgate/providers/snapchat"
	"github.com/growthtools/snapgate/security"
	"github.com/growthtools/snapgate/segments"
	"github.com/growthtools/snapgate/storage"
	"github.com/growthtools/snapgate/storage/memory"
	"github.com/growthtools/snapgate/storage/valkey"
)

// Service wires the token lifecycle manager, the storage backend, and the
// segment client into one deployable unit.
type Service struct {
	manager     *auth.Manager
	segments    *segments.Client
	store       storage.TokenStore
	rateLimiter *security.RateLimiter
	auditor     *security.Auditor
	instr       *instrumentation.Instrumentation
	logger      *slog.Logger
	backend     string
	trustProxy  bool

	closeStore func()
}

// New creates the service from config. The returned Service owns the
// storage connection; call Close when done.
func New(config Config) (*Service, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := snapchat.NewProvider(&snapchat.Config{
		ClientID:     config.SnapchatAuth.ClientID,
		ClientSecret: config.SnapchatAuth.ClientSecret,
		RedirectURL:  config.SnapchatAuth.RedirectURL,
		Scopes:       config.SnapchatAuth.Scopes,
		HTTPClient:   config.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Snapchat provider: %w", err)
	}

	encryptor, err := security.NewEncryptor(config.Security.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	instr, err := instrumentation.New(instrumentation.Config{
		ServiceName: "snapgate",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation: %w", err)
	}

	svc := &Service{
		instr:      instr,
		logger:     logger,
		backend:    config.Storage.Backend,
		trustProxy: config.RateLimit.TrustProxy,
	}
	if svc.backend == "" {
		svc.backend = BackendMemory
	}

	switch svc.backend {
	case BackendMemory:
		store := memory.New()
		store.SetLogger(logger)
		store.SetEncryptor(encryptor)
		store.SetInstrumentation(instr)
		svc.store = store
	case BackendValkey:
		var tlsConfig *tls.Config
		if config.Storage.ValkeyTLS {
			tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		store, err := valkey.New(valkey.Config{
			Address:   config.Storage.ValkeyAddress,
			Password:  config.Storage.ValkeyPassword,
			DB:        config.Storage.ValkeyDB,
			KeyPrefix: config.Storage.ValkeyKeyPrefix,
			TLS:       tlsConfig,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
		}
		store.SetEncryptor(encryptor)
		svc.store = store
		svc.closeStore = store.Close
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", svc.backend)
	}

	if encryptor.IsEnabled() {
		logger.Info("Token encryption at rest enabled")
	}

	svc.auditor = security.NewAuditor(logger, config.Security.EnableAuditLogging)

	manager, err := auth.New(svc.store, provider, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}
	manager.SetAuditor(svc.auditor)
	manager.SetInstrumentation(instr)
	svc.manager = manager

	segmentOpts := []segments.Option{segments.WithLogger(logger)}
	if config.SegmentsBaseURL != "" {
		segmentOpts = append(segmentOpts, segments.WithBaseURL(config.SegmentsBaseURL))
	}
	if config.HTTPClient != nil {
		segmentOpts = append(segmentOpts, segments.WithHTTPClient(config.HTTPClient))
	}
	svc.segments = segments.NewClient(segmentOpts...)

	if config.RateLimit.Rate > 0 {
		svc.rateLimiter = security.NewRateLimiter(config.RateLimit.Rate, config.RateLimit.Burst, logger)
	}

	return svc, nil
}

// Manager exposes the token lifecycle manager, mainly for embedding the
// service into a larger program.
func (s *Service) Manager() *auth.Manager {
	return s.manager
}

// Close releases the storage connection
func (s *Service) Close() {
	if s.closeStore != nil {
		s.closeStore()
	}
}

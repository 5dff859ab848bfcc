// Command snapgate runs the credential broker as a standalone HTTP service.
// Configuration comes from environment variables, optionally loaded from a
// .env file in the working directory.
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	snapgate "github.com/growthtools/snapgate"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// a missing .env file is fine, the environment may be set directly
	_ = godotenv.Load()

	logger := newLogger(os.Getenv("SNAPGATE_LOG_LEVEL"))

	config, err := configFromEnv(logger)
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	svc, err := snapgate.New(config)
	if err != nil {
		logger.Error("Failed to start service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	addr := os.Getenv("SNAPGATE_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           snapgate.NewHandler(svc, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("Server stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func configFromEnv(logger *slog.Logger) (snapgate.Config, error) {
	config := snapgate.Config{
		SnapchatAuth: snapgate.SnapchatAuthConfig{
			ClientID:     os.Getenv("SNAPCHAT_CLIENT_ID"),
			ClientSecret: os.Getenv("SNAPCHAT_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("SNAPCHAT_REDIRECT_URL"),
		},
		Storage: snapgate.StorageConfig{
			Backend:         os.Getenv("SNAPGATE_STORAGE_BACKEND"),
			ValkeyAddress:   os.Getenv("SNAPGATE_VALKEY_ADDRESS"),
			ValkeyPassword:  os.Getenv("SNAPGATE_VALKEY_PASSWORD"),
			ValkeyKeyPrefix: os.Getenv("SNAPGATE_VALKEY_KEY_PREFIX"),
			ValkeyTLS:       envBool("SNAPGATE_VALKEY_TLS"),
		},
		RateLimit: snapgate.RateLimitConfig{
			Rate:       envInt("SNAPGATE_RATE_LIMIT"),
			Burst:      envInt("SNAPGATE_RATE_BURST"),
			TrustProxy: envBool("SNAPGATE_TRUST_PROXY"),
		},
		Security: snapgate.SecurityConfig{
			EnableAuditLogging: envBool("SNAPGATE_AUDIT_LOGGING"),
		},
		SegmentsBaseURL: os.Getenv("SNAPGATE_SEGMENTS_BASE_URL"),
		Logger:          logger,
	}

	if scopes := os.Getenv("SNAPCHAT_SCOPES"); scopes != "" {
		config.SnapchatAuth.Scopes = strings.Split(scopes, ",")
	}
	config.Storage.ValkeyDB = envInt("SNAPGATE_VALKEY_DB")

	if encoded := os.Getenv("SNAPGATE_ENCRYPTION_KEY"); encoded != "" {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return config, fmt.Errorf("SNAPGATE_ENCRYPTION_KEY is not valid base64: %w", err)
		}
		config.Security.EncryptionKey = key
	}

	return config, nil
}

func envInt(name string) int {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(name string) bool {
	v, _ := strconv.ParseBool(os.Getenv(name))
	return v
}

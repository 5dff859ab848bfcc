// Package storage provides the TokenStore interface and shared types for
// persisting per-user OAuth token records.
//
// The lifecycle manager in package auth is the authority on token staleness;
// stores only hold records and must keep them available even after the
// access token itself has expired, so that a refresh can still be attempted.
//
// Implementations are provided in subpackages:
//   - storage/memory: in-memory storage for development and testing
//   - storage/mock: mock storage for unit testing
//   - storage/valkey: Valkey/Redis-compatible distributed storage for production
package storage

// Package security provides the security building blocks of the gateway:
// token encryption at rest, per-client rate limiting, request ID
// correlation, audit logging, and client IP extraction.
package security

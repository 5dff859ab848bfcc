// Package valkey provides a Valkey/Redis-compatible implementation of the
// token store for multi-instance deployments.
//
// Records are serialized as JSON under namespaced keys ("snapgate:token:" +
// userID). A store-level TTL is applied as a safety net only: it is set far
// past the access token expiry, because the lifecycle manager needs the
// record after expiry to attempt a refresh. Backend I/O failures are wrapped
// with storage.ErrStoreUnavailable so callers never confuse an outage with
// an absent token.
package valkey

// Package auth implements the token lifecycle: acquiring a token pair via
// the OAuth authorization-code flow, persisting it, handing out access
// tokens that are transparently renewed before expiry, and purging records
// whose refresh tokens the authorization server no longer accepts.
//
// The Manager is the single authority on token staleness. Callers never see
// a token within five minutes of expiry; concurrent callers for the same
// user share one refresh attempt rather than racing the refresh token.
package auth

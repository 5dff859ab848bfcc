// Package providers abstracts the upstream OAuth2 authorization server
// behind a small interface so the token lifecycle manager can be tested
// against a mock and pointed at different issuers.
//
// Implementations:
//   - providers/snapchat: the Snapchat accounts OAuth2 endpoints
//   - providers/mock: function-field mock with call counters for tests
package providers

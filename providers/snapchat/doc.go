// Package snapchat implements the providers.Provider interface against the
// Snapchat accounts OAuth2 endpoints used by the Marketing API.
package snapchat

package snapgate

import (
	"errors"
	"net/http"

	"github.com/growthtools/snapgate/auth"
	"github.com/growthtools/snapgate/providers"
	"github.com/growthtools/snapgate/storage"
)

// Error codes used in JSON error responses
const (
	ErrorCodeInvalidRequest    = "invalid_request"
	ErrorCodeNoToken           = "no_token"
	ErrorCodeStoreUnavailable  = "store_unavailable"
	ErrorCodeUpstreamError     = "upstream_error"
	ErrorCodeServerError       = "server_error"
	ErrorCodeRateLimitExceeded = "rate_limit_exceeded"
)

// APIError carries an error code and HTTP status for a JSON error response
type APIError struct {
	Code        string // machine-readable error code
	Description string // human-readable error description
	Status      int    // HTTP status code
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Code + ": " + e.Description
}

// classifyError maps a lifecycle or upstream error onto the API error
// taxonomy. The distinctions matter to callers: 404 means re-authorize,
// 503 means retry later, 502 means the authorization server balked.
func classifyError(err error) *APIError {
	var upstream *providers.UpstreamError
	var decode *providers.DecodeError

	switch {
	case errors.Is(err, auth.ErrNoToken):
		return &APIError{
			Code:        ErrorCodeNoToken,
			Description: "No token found for user. Please authorize first.",
			Status:      http.StatusNotFound,
		}
	case errors.Is(err, storage.ErrStoreUnavailable):
		return &APIError{
			Code:        ErrorCodeStoreUnavailable,
			Description: "Token storage is temporarily unavailable. Please retry.",
			Status:      http.StatusServiceUnavailable,
		}
	case errors.As(err, &upstream):
		return &APIError{
			Code:        ErrorCodeUpstreamError,
			Description: upstream.Error(),
			Status:      http.StatusBadGateway,
		}
	case errors.As(err, &decode):
		return &APIError{
			Code:        ErrorCodeUpstreamError,
			Description: decode.Error(),
			Status:      http.StatusBadGateway,
		}
	default:
		return &APIError{
			Code:        ErrorCodeServerError,
			Description: "An internal error occurred.",
			Status:      http.StatusInternalServerError,
		}
	}
}

package snapgate

import (
	"time"

	"github.com/growthtools/snapgate/segments"
)

// authorizeResponse is returned by GET /api/auth/authorize
type authorizeResponse struct {
	Message          string `json:"message"`
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// callbackResponse is returned by GET /api/auth/callback
type callbackResponse struct {
	Message     string `json:"message"`
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// tokenResponse is returned by GET /api/auth/token/{userId}
type tokenResponse struct {
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// refreshResponse is returned by POST /api/auth/refresh/{userId}
type refreshResponse struct {
	Message     string    `json:"message"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// messageResponse is a generic confirmation body
type messageResponse struct {
	Message string `json:"message"`
}

// createSegmentsRequest is the body of POST /api/snapchat/segments
type createSegmentsRequest struct {
	Segments []segments.Segment `json:"segments"`
}

// addUsersRequest is the body of POST /api/snapchat/segments/{segmentId}/users
type addUsersRequest struct {
	Users []segments.UserUpload `json:"users"`
}

// emailGenerateRequest is the body of POST /api/emailgenerator/generate
type emailGenerateRequest struct {
	Count int `json:"count"`
}

// emailGenerateResponse is returned by POST /api/emailgenerator/generate
type emailGenerateResponse struct {
	Count  int      `json:"count"`
	Emails []string `json:"emails"`
}

// hashRequest is the body of POST /api/hash/sha256
type hashRequest struct {
	Input        *string `json:"input"`
	OutputFormat string  `json:"output_format,omitempty"`
}

// hashResponse is returned by POST /api/hash/sha256
type hashResponse struct {
	Format string `json:"format"`
	Hash   string `json:"hash"`
}

// hashListRequest is the body of POST /api/hash/sha256/list
type hashListRequest struct {
	Inputs []string `json:"inputs"`
}

// hashListResponse is returned by POST /api/hash/sha256/list
type hashListResponse struct {
	Format string   `json:"format"`
	Count  int      `json:"count"`
	Hashes []string `json:"hashes"`
}

// healthResponse is returned by GET /health
type healthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}

package snapgate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/growthtools/snapgate/internal/emailgen"
	"github.com/growthtools/snapgate/internal/hashutil"
	"github.com/growthtools/snapgate/security"
)

const (
	hashFormatHex    = "hex"
	hashFormatBase64 = "base64"
)

// Handler is a thin HTTP adapter for the Service. It parses requests,
// delegates to the lifecycle manager or segment client, and renders JSON.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Routes returns the handler's route table wrapped in the standard
// middleware chain.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/auth/authorize", h.rateLimited(h.handleAuthorize))
	mux.HandleFunc("GET /api/auth/callback", h.rateLimited(h.handleCallback))
	mux.HandleFunc("GET /api/auth/token/{userId}", h.rateLimited(h.handleGetToken))
	mux.HandleFunc("POST /api/auth/refresh/{userId}", h.rateLimited(h.handleRefresh))
	mux.HandleFunc("DELETE /api/auth/revoke/{userId}", h.rateLimited(h.handleRevoke))

	mux.HandleFunc("POST /api/snapchat/segments", h.handleCreateSegments)
	mux.HandleFunc("GET /api/snapchat/adaccounts/{adAccountId}/segments", h.handleListSegments)
	mux.HandleFunc("GET /api/snapchat/segments/{segmentId}", h.handleGetSegment)
	mux.HandleFunc("POST /api/snapchat/segments/{segmentId}/users", h.handleAddUsers)
	mux.HandleFunc("DELETE /api/snapchat/segments/{segmentId}/all_users", h.handleRemoveAllUsers)
	mux.HandleFunc("DELETE /api/snapchat/segments/{segmentId}", h.handleDeleteSegment)

	mux.HandleFunc("POST /api/emailgenerator/generate", h.handleGenerateEmails)
	mux.HandleFunc("POST /api/hash/sha256", h.handleHash)
	mux.HandleFunc("POST /api/hash/sha256/list", h.handleHashList)

	mux.HandleFunc("GET /health", h.handleHealth)

	return security.RequestIDMiddleware(h.withMetrics(mux))
}

// rateLimited applies per-IP rate limiting to an endpoint. A nil limiter
// (rate limiting disabled) passes everything through.
func (h *Handler) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limiter := h.service.rateLimiter
		if limiter != nil {
			clientIP := security.GetClientIP(r, h.service.trustProxy)
			if !limiter.Allow(clientIP) {
				h.logger.Warn("Rate limit exceeded", "ip", clientIP, "path", r.URL.Path)
				if h.service.instr != nil {
					h.service.instr.Metrics().RateLimitExceeded.Add(r.Context(), 1)
				}
				h.writeError(w, ErrorCodeRateLimitExceeded,
					"Too many requests. Please try again later.",
					http.StatusTooManyRequests)
				return
			}
		}
		next(w, r)
	}
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (h *Handler) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		if h.service.instr == nil {
			return
		}
		metrics := h.service.instr.Metrics()
		attrs := metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("path", r.URL.Path),
			attribute.Int("status", rec.status),
		)
		ctx := context.Background()
		metrics.HTTPRequestsTotal.Add(ctx, 1, attrs)
		metrics.HTTPRequestDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	})
}

// --- Auth endpoints ---

func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")

	authURL, state := h.service.manager.BeginAuthorization(userID)

	h.writeJSON(w, http.StatusOK, authorizeResponse{
		Message:          "Open this URL in your browser to authorize",
		AuthorizationURL: authURL,
		State:            state,
	})
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Warn("Authorization denied by user or provider",
			"error", errParam,
			"description", query.Get("error_description"))
		h.writeError(w, ErrorCodeInvalidRequest,
			"Authorization was denied: "+errParam, http.StatusBadRequest)
		return
	}
	if code == "" {
		h.writeError(w, ErrorCodeInvalidRequest,
			"Authorization code not provided", http.StatusBadRequest)
		return
	}

	result, err := h.service.manager.CompleteAuthorization(r.Context(), code, state)
	if err != nil {
		h.writeServiceError(w, "complete authorization", err)
		return
	}

	h.writeJSON(w, http.StatusOK, callbackResponse{
		Message:     "Authorization successful",
		UserID:      result.UserID,
		AccessToken: result.AccessToken,
		ExpiresIn:   result.ExpiresIn,
		TokenType:   result.TokenType,
	})
}

func (h *Handler) handleGetToken(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	record, err := h.service.manager.GetValidToken(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "get token", err)
		return
	}

	h.writeJSON(w, http.StatusOK, tokenResponse{
		UserID:      record.UserID,
		AccessToken: record.AccessToken,
		ExpiresAt:   record.ExpiresAt,
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	record, err := h.service.manager.ForceRefresh(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "refresh token", err)
		return
	}

	h.writeJSON(w, http.StatusOK, refreshResponse{
		Message:     "Token refreshed successfully",
		AccessToken: record.AccessToken,
		ExpiresAt:   record.ExpiresAt,
	})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	if err := h.service.manager.RevokeToken(r.Context(), userID); err != nil {
		h.writeServiceError(w, "revoke token", err)
		return
	}

	h.writeJSON(w, http.StatusOK, messageResponse{Message: "Token revoked successfully"})
}

// --- Segment endpoints ---

// withAccessToken fetches a valid token for the default user and hands it to
// fn. Segment routes always act as the service identity.
func (h *Handler) withAccessToken(w http.ResponseWriter, r *http.Request, op string, fn func(accessToken string) error) {
	record, err := h.service.manager.GetValidToken(r.Context(), "")
	if err != nil {
		h.writeServiceError(w, op, err)
		return
	}
	if err := fn(record.AccessToken); err != nil {
		h.writeServiceError(w, op, err)
	}
}

func (h *Handler) handleCreateSegments(w http.ResponseWriter, r *http.Request) {
	var req createSegmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, ErrorCodeInvalidRequest, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if len(req.Segments) == 0 {
		h.writeError(w, ErrorCodeInvalidRequest, "Request body with segments is required.", http.StatusBadRequest)
		return
	}
	if req.Segments[0].AdAccountID == "" {
		h.writeError(w, ErrorCodeInvalidRequest, "ad_account_id is required.", http.StatusBadRequest)
		return
	}

	h.withAccessToken(w, r, "create segments", func(accessToken string) error {
		result, err := h.service.segments.CreateSegments(r.Context(), accessToken, req.Segments)
		if err != nil {
			return err
		}
		h.writePassthrough(w, result.StatusCode, result.Body)
		return nil
	})
}

func (h *Handler) handleListSegments(w http.ResponseWriter, r *http.Request) {
	adAccountID := r.PathValue("adAccountId")
	if strings.TrimSpace(adAccountID) == "" {
		h.writeError(w, ErrorCodeInvalidRequest, "Ad account ID is required.", http.StatusBadRequest)
		return
	}

	h.withAccessToken(w, r, "list segments", func(accessToken string) error {
		result, err := h.service.segments.ListSegments(r.Context(), accessToken, adAccountID)
		if err != nil {
			return err
		}
		h.writePassthrough(w, result.StatusCode, result.Body)
		return nil
	})
}

func (h *Handler) handleGetSegment(w http.ResponseWriter, r *http.Request) {
	segmentID := r.PathValue("segmentId")
	if strings.TrimSpace(segmentID) == "" {
		h.writeError(w, ErrorCodeInvalidRequest, "Segment ID is required.", http.StatusBadRequest)
		return
	}

	h.withAccessToken(w, r, "get segment", func(accessToken string) error {
		result, err := h.service.segments.GetSegment(r.Context(), accessToken, segmentID)
		if err != nil {
			return err
		}
		h.writePassthrough(w, result.StatusCode, result.Body)
		return nil
	})
}

func (h *Handler) handleAddUsers(w http.ResponseWriter, r *http.Request) {
	segmentID := r.PathValue("segmentId")
	if strings.TrimSpace(segmentID) == "" {
		h.writeError(w, ErrorCodeInvalidRequest, "Segment ID is required.", http.StatusBadRequest)
		return
	}

	var req addUsersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, ErrorCodeInvalidRequest, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if len(req.Users) == 0 {
		h.writeError(w, ErrorCodeInvalidRequest, "Users data is required.", http.StatusBadRequest)
		return
	}

	h.withAccessToken(w, r, "add users to segment", func(accessToken string) error {
		result, err := h.service.segments.AddUsers(r.Context(), accessToken, segmentID, req.Users)
		if err != nil {
			return err
		}
		h.writePassthrough(w, result.StatusCode, result.Body)
		return nil
	})
}

func (h *Handler) handleRemoveAllUsers(w http.ResponseWriter, r *http.Request) {
	segmentID := r.PathValue("segmentId")
	if strings.TrimSpace(segmentID) == "" {
		h.writeError(w, ErrorCodeInvalidRequest, "Segment ID is required.", http.StatusBadRequest)
		return
	}

	h.withAccessToken(w, r, "remove all users from segment", func(accessToken string) error {
		result, err := h.service.segments.RemoveAllUsers(r.Context(), accessToken, segmentID)
		if err != nil {
			return err
		}
		h.writePassthrough(w, result.StatusCode, result.Body)
		return nil
	})
}

func (h *Handler) handleDeleteSegment(w http.ResponseWriter, r *http.Request) {
	segmentID := r.PathValue("segmentId")
	if strings.TrimSpace(segmentID) == "" {
		h.writeError(w, ErrorCodeInvalidRequest, "Segment ID is required.", http.StatusBadRequest)
		return
	}

	h.withAccessToken(w, r, "delete segment", func(accessToken string) error {
		result, err := h.service.segments.DeleteSegment(r.Context(), accessToken, segmentID)
		if err != nil {
			return err
		}
		h.writePassthrough(w, result.StatusCode, result.Body)
		return nil
	})
}

// --- Utility endpoints ---

func (h *Handler) handleGenerateEmails(w http.ResponseWriter, r *http.Request) {
	var req emailGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, ErrorCodeInvalidRequest, "Request body is required.", http.StatusBadRequest)
		return
	}

	emails, err := emailgen.Generate(req.Count)
	if err != nil {
		h.writeError(w, ErrorCodeInvalidRequest, "Count must be a positive integer.", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, emailGenerateResponse{
		Count:  len(emails),
		Emails: emails,
	})
}

func (h *Handler) handleHash(w http.ResponseWriter, r *http.Request) {
	var req hashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, ErrorCodeInvalidRequest, "Request body is required.", http.StatusBadRequest)
		return
	}
	if req.Input == nil {
		h.writeError(w, ErrorCodeInvalidRequest, "Input cannot be null.", http.StatusBadRequest)
		return
	}

	format := strings.ToLower(strings.TrimSpace(req.OutputFormat))
	if format == "" {
		format = hashFormatHex
	}

	var hash string
	switch format {
	case hashFormatHex:
		hash = hashutil.SumHex(*req.Input)
	case hashFormatBase64:
		hash = hashutil.SumBase64(*req.Input)
	default:
		h.writeError(w, ErrorCodeInvalidRequest, "Invalid output format. Use 'hex' or 'base64'.", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, hashResponse{Format: format, Hash: hash})
}

func (h *Handler) handleHashList(w http.ResponseWriter, r *http.Request) {
	var req hashListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, ErrorCodeInvalidRequest, "Request body is required.", http.StatusBadRequest)
		return
	}
	if len(req.Inputs) == 0 {
		h.writeError(w, ErrorCodeInvalidRequest, "Inputs list cannot be null or empty.", http.StatusBadRequest)
		return
	}

	hashes := hashutil.SumListHex(req.Inputs)

	h.writeJSON(w, http.StatusOK, hashListResponse{
		Format: hashFormatHex,
		Count:  len(hashes),
		Hashes: hashes,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Backend: h.service.backend,
	})
}

// --- Response helpers ---

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	security.SetSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, code, description string, status int) {
	security.SetSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": description,
	})
}

// writeServiceError maps lifecycle and upstream errors to HTTP responses
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	apiErr := classifyError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "op", op, "error", err)
	} else {
		h.logger.Warn("Request failed", "op", op, "error", err)
	}
	h.writeError(w, apiErr.Code, apiErr.Description, apiErr.Status)
}

// writePassthrough relays an upstream segment API response verbatim
func (h *Handler) writePassthrough(w http.ResponseWriter, status int, body []byte) {
	if h.service.instr != nil {
		h.service.instr.Metrics().UpstreamCallsTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.Int("status", status)))
	}

	security.SetSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

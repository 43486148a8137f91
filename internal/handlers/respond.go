package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/snapsight/client/internal/logging"
)

// Error codes shared with API consumers.
const (
	codeAuthRequired     = "AUTH_REQUIRED"
	codeImageFetchFailed = "IMAGE_FETCH_FAILED"
	codeInvalidID        = "INVALID_ID"
	codeNotFound         = "NOT_FOUND"
)

// apiError is the JSON error body consumers decode.
type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	respondJSON(ctx, w, status, apiError{Message: message, Code: code})
}

// bearerUserID resolves the Authorization header to a user id. An empty
// string means the request is unauthenticated and a 401 was already sent.
func bearerUserID(w http.ResponseWriter, r *http.Request, tokens TokenManager) string {
	ctx := r.Context()

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		respondError(ctx, w, http.StatusUnauthorized, codeAuthRequired, "Unauthorized")
		return ""
	}

	value := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	userID, err := tokens.Validate(ctx, value)
	if err != nil {
		logging.FromContext(ctx).Warn("token validation failed", "error", err)
		respondError(ctx, w, http.StatusUnauthorized, codeAuthRequired, "Unauthorized")
		return ""
	}

	return userID
}

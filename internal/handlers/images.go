package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/snapsight/client/internal/logging"
	"github.com/snapsight/client/internal/models"
)

// Presign slot parameters shared with clients.
const (
	presignLifetime = 5 * time.Minute
	maxUploadBytes  = 5242880
)

// ImageHandler implements the presigned-upload endpoint.
type ImageHandler struct {
	Tokens  TokenManager
	Objects ObjectStore
	NowFunc func() time.Time
}

// Presign handles POST /image/get-presign-url requests.
func (h ImageHandler) Presign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := bearerUserID(w, r, h.Tokens)
	if userID == "" {
		return
	}

	var req struct {
		FileName    string `json:"fileName"`
		ContentType string `json:"contentType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid presign payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "", "invalid request body")
		return
	}

	switch req.ContentType {
	case "image/png", "image/jpeg", "image/webp":
	default:
		respondError(ctx, w, http.StatusBadRequest, "", "Unsupported content type")
		return
	}

	fileName := path.Base(strings.TrimSpace(req.FileName))
	if fileName == "" || fileName == "." || fileName == "/" {
		respondError(ctx, w, http.StatusBadRequest, "", "file name is required")
		return
	}

	key := fmt.Sprintf("users/%s/posts/%d-%s", userID, h.now().UnixMilli(), fileName)

	uploadURL, err := h.Objects.PresignPut(ctx, key, req.ContentType, presignLifetime)
	if err != nil {
		logger.Error("presign upload url", "key", key, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "", "failed to create upload url")
		return
	}

	respondJSON(ctx, w, http.StatusOK, models.UploadSlot{
		UploadURL: uploadURL,
		FileKey:   key,
		AccessURL: h.Objects.PublicURL(key),
		ExpiresIn: int(presignLifetime.Seconds()),
		MaxSize:   maxUploadBytes,
	})
}

func (h ImageHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/snapsight/client/internal/logging"
	"github.com/snapsight/client/internal/storage"
)

// UploadHandler serves the local object store so presigned PUT URLs issued
// by the dev server resolve against the server itself.
type UploadHandler struct {
	Store *storage.LocalStorage
}

// Handle implements PUT and GET under /uploads/{key}.
func (h UploadHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key := strings.TrimPrefix(r.URL.Path, "/uploads/")
	if key == "" {
		respondError(ctx, w, http.StatusBadRequest, "", "object key is required")
		return
	}

	switch r.Method {
	case http.MethodPut:
		if _, err := h.Store.Save(ctx, key, r.Body); err != nil {
			logging.FromContext(ctx).Error("store upload", "key", key, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "", "failed to store object")
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := h.Store.Get(key)
		if !ok {
			respondError(ctx, w, http.StatusNotFound, codeNotFound, "object not found")
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

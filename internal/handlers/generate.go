package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/snapsight/client/internal/analyzer"
	"github.com/snapsight/client/internal/logging"
	"github.com/snapsight/client/internal/models"
	"github.com/snapsight/client/internal/repositories"
)

const defaultHistoryLimit = 20

// GenerateHandler implements the analysis and history endpoints.
type GenerateHandler struct {
	Tokens   TokenManager
	Objects  ObjectStore
	Analyzer AnalysisProvider
	Recorder AnalysisRecorder
	History  HistoryStore
}

// FromImage handles POST /generate/from-image requests.
func (h GenerateHandler) FromImage(w http.ResponseWriter, r *http.Request) {
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

	var req models.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid analyze payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "", "invalid request body")
		return
	}

	if strings.TrimSpace(req.FileKey) == "" {
		respondError(ctx, w, http.StatusBadRequest, "", "fileKey is required")
		return
	}

	accessURL := h.Objects.PublicURL(req.FileKey)

	result, err := h.Analyzer.Analyze(ctx, accessURL, req)
	if err != nil {
		if errors.Is(err, analyzer.ErrImageUnavailable) {
			respondJSON(ctx, w, http.StatusNotFound, apiError{
				Message: "Image URL not accessible",
				Code:    codeImageFetchFailed,
				Hint:    "Ensure the image is publicly accessible or provide a valid signed URL.",
			})
			return
		}
		logger.Error("analysis failed", "fileKey", req.FileKey, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "", "analysis failed")
		return
	}

	if h.Recorder != nil {
		if _, err := h.Recorder.Enqueue(ctx, userID, req.FileKey, accessURL, req.Tasks, result); err != nil {
			logger.Error("enqueue history record", "fileKey", req.FileKey, "error", err)
		}
	}

	respondJSON(ctx, w, http.StatusOK, result)
}

// HistoryList handles GET /generate/history requests.
func (h GenerateHandler) HistoryList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := bearerUserID(w, r, h.Tokens)
	if userID == "" {
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(ctx, w, http.StatusBadRequest, "", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	cursor := r.URL.Query().Get("cursor")

	page, err := h.History.List(ctx, userID, limit, cursor)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusBadRequest, codeInvalidID, "Unknown history cursor")
			return
		}
		logger.Error("list history", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "", "failed to load history")
		return
	}

	if page.Items == nil {
		page.Items = []models.HistoryItem{}
	}
	respondJSON(ctx, w, http.StatusOK, page)
}

// HistoryDetail handles GET /generate/history/{id} requests.
func (h GenerateHandler) HistoryDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := bearerUserID(w, r, h.Tokens)
	if userID == "" {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/generate/history/")
	if !strings.HasPrefix(id, "hist_") || id == "hist_" {
		respondError(ctx, w, http.StatusBadRequest, codeInvalidID, "Invalid history ID format")
		return
	}

	item, err := h.History.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, codeNotFound, "History entry not found")
			return
		}
		logger.Error("load history entry", "historyId", id, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "", "failed to load history entry")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]models.DetailedHistoryItem{"item": item})
}

package handlers

import (
	"net/http"

	"github.com/snapsight/client/internal/storage"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Users: deps.Users, Tokens: deps.Tokens, Limiter: deps.AuthLimiter, BaseURL: deps.BaseURL}
	images := ImageHandler{Tokens: deps.Tokens, Objects: deps.Objects}
	generate := GenerateHandler{
		Tokens:   deps.Tokens,
		Objects:  deps.Objects,
		Analyzer: deps.Analyzer,
		Recorder: deps.Recorder,
		History:  deps.History,
	}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/auth/sign-in/email", auth.SignInEmail)
	mux.HandleFunc("/auth/sign-up/email", auth.SignUpEmail)
	mux.HandleFunc("/auth/sign-out", auth.SignOut)
	mux.HandleFunc("/auth/sign-in/social", auth.SignInSocial)
	mux.HandleFunc("/auth/callback/google", auth.CallbackGoogle)
	mux.HandleFunc("/image/get-presign-url", images.Presign)
	mux.HandleFunc("/generate/from-image", generate.FromImage)
	mux.HandleFunc("/generate/history", generate.HistoryList)
	mux.HandleFunc("/generate/history/", generate.HistoryDetail)

	if deps.Uploads != nil {
		uploads := UploadHandler{Store: deps.Uploads}
		mux.HandleFunc("/uploads/", uploads.Handle)
	}
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users       UserStore
	Tokens      TokenManager
	Objects     ObjectStore
	Analyzer    AnalysisProvider
	Recorder    AnalysisRecorder
	History     HistoryStore
	AuthLimiter RateLimiter
	Uploads     *storage.LocalStorage
	BaseURL     string
}

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/snapsight/client/internal/analyzer"
	"github.com/snapsight/client/internal/auth"
	"github.com/snapsight/client/internal/config"
	"github.com/snapsight/client/internal/db"
	"github.com/snapsight/client/internal/handlers"
	"github.com/snapsight/client/internal/middleware"
	"github.com/snapsight/client/internal/recorder"
	"github.com/snapsight/client/internal/repositories"
	"github.com/snapsight/client/internal/storage"
)

const tokenTTL = 24 * time.Hour

// buildDependencies wires together concrete implementations used by the
// HTTP handlers. The recorder is returned separately so the server can
// drain it on shutdown.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, *recorder.Recorder, error) {
	historyRepo := repositories.NewPostgresHistoryRepository(pool)
	rec := recorder.New(historyRepo, recorder.Config{QueueSize: 32, Workers: 2}, nil)

	baseURL := fmt.Sprintf("http://localhost:%d", cfg.AppPort)

	var objects handlers.ObjectStore
	if cfg.ObjectStore.Bucket != "" {
		s3store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, nil, err
		}
		objects = s3store
	}

	var uploads *storage.LocalStorage
	if objects == nil {
		uploads = storage.NewLocalStorage(baseURL)
		objects = uploads
	}

	var provider handlers.AnalysisProvider
	if cfg.OpenAIKey != "" {
		provider = analyzer.NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIModel)
	} else {
		provider = analyzer.NewFixtureProvider()
	}

	deps := handlers.Dependencies{
		Users:       repositories.NewPostgresUserRepository(pool),
		Tokens:      auth.NewManager(tokenTTL, repositories.NewPostgresTokenStore(pool)),
		Objects:     objects,
		Analyzer:    provider,
		Recorder:    rec,
		History:     historyRepo,
		AuthLimiter: middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute),
		Uploads:     uploads,
		BaseURL:     baseURL,
	}

	return deps, rec, nil
}

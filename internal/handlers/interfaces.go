package handlers

import (
	"context"
	"time"

	"github.com/snapsight/client/internal/auth"
	"github.com/snapsight/client/internal/models"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// TokenManager issues, validates, and revokes bearer tokens for users.
type TokenManager interface {
	Issue(ctx context.Context, userID string) (auth.Token, error)
	Validate(ctx context.Context, value string) (string, error)
	Revoke(ctx context.Context, value string)
}

// ObjectStore provides presigned upload URLs and public read locations.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string, lifetime time.Duration) (string, error)
	PublicURL(key string) string
}

// AnalysisProvider generates insights for an uploaded image.
type AnalysisProvider interface {
	Analyze(ctx context.Context, imageURL string, req models.AnalyzeRequest) (models.AnalysisResult, error)
}

// AnalysisRecorder schedules background persistence of completed analyses.
type AnalysisRecorder interface {
	Enqueue(ctx context.Context, userID, fileKey, accessURL string, tasks []string, result models.AnalysisResult) (string, error)
}

// HistoryStore captures read access to a user's analysis history.
type HistoryStore interface {
	List(ctx context.Context, userID string, limit int, cursor string) (models.HistoryPage, error)
	Get(ctx context.Context, userID, id string) (models.DetailedHistoryItem, error)
}

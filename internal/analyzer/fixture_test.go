package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/snapsight/client/internal/models"
)

func TestFixtureProviderAnalyze(t *testing.T) {
	provider := NewFixtureProvider()
	generated := time.Date(2025, 12, 3, 10, 0, 0, 0, time.UTC)
	provider.WithNowFunc(func() time.Time { return generated })

	req := models.AnalyzeRequest{
		FileKey:  "users/usr_123/posts/beach.jpg",
		Tasks:    models.AllTasks(),
		Language: "id",
		Limits:   models.AnalyzeLimits{MaxSongs: 5, MaxTopics: 8},
	}

	result, err := provider.Analyze(context.Background(), "https://bucket/users/usr_123/posts/beach.jpg", req)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if !result.Curation.IsAppropriate || result.Curation.Risk != models.RiskLow {
		t.Fatalf("unexpected curation: %+v", result.Curation)
	}
	if result.Caption.Text == "" || len(result.Caption.Alternatives) == 0 {
		t.Fatalf("unexpected caption: %+v", result.Caption)
	}
	if result.Meta.Language != "id" || !result.Meta.GeneratedAt.Equal(generated) {
		t.Fatalf("unexpected meta: %+v", result.Meta)
	}
}

func TestFixtureProviderMissingImage(t *testing.T) {
	provider := NewFixtureProvider()

	req := models.AnalyzeRequest{FileKey: "users/usr_123/posts/not-found.jpg"}
	if _, err := provider.Analyze(context.Background(), "", req); !errors.Is(err, ErrImageUnavailable) {
		t.Fatalf("expected ErrImageUnavailable, got %v", err)
	}
}

func TestClampHonorsLimitsAndTasks(t *testing.T) {
	provider := NewFixtureProvider()

	req := models.AnalyzeRequest{
		FileKey: "users/usr_123/posts/beach.jpg",
		Tasks:   []string{models.TaskCaption, models.TaskSongs},
		Limits:  models.AnalyzeLimits{MaxSongs: 1, MaxTopics: 1},
	}

	result, err := provider.Analyze(context.Background(), "", req)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if len(result.Songs) != 1 {
		t.Fatalf("expected songs trimmed to 1, got %d", len(result.Songs))
	}
	if len(result.Topics) != 0 {
		t.Fatalf("expected topics dropped, got %+v", result.Topics)
	}
	if result.Curation.IsAppropriate {
		t.Fatalf("expected curation dropped, got %+v", result.Curation)
	}
	if result.Caption.Text == "" {
		t.Fatal("expected caption kept")
	}
}

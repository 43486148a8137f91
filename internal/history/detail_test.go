package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/snapsight/client/internal/models"
)

type countingDetailSource struct {
	calls int
	err   error
}

func (c *countingDetailSource) HistoryDetail(_ context.Context, id string) (models.DetailedHistoryItem, error) {
	c.calls++
	if c.err != nil {
		return models.DetailedHistoryItem{}, c.err
	}
	return models.DetailedHistoryItem{
		HistoryItem: models.HistoryItem{ID: id, FileKey: "users/123/posts/foto-unik-1.jpg"},
		Tasks:       models.AllTasks(),
	}, nil
}

func TestCachingDetailSourceCachesHits(t *testing.T) {
	base := &countingDetailSource{}
	source := NewCachingDetailSource(base, time.Minute)

	first, err := source.HistoryDetail(context.Background(), "hist_001")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	second, err := source.HistoryDetail(context.Background(), "hist_001")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}

	if base.calls != 1 {
		t.Fatalf("expected one upstream call got %d", base.calls)
	}
	if first.ID != second.ID {
		t.Fatalf("expected cached item, got %s and %s", first.ID, second.ID)
	}

	if _, err := source.HistoryDetail(context.Background(), "hist_002"); err != nil {
		t.Fatalf("detail: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected distinct ids to miss, got %d calls", base.calls)
	}
}

func TestCachingDetailSourceDoesNotCacheFailures(t *testing.T) {
	base := &countingDetailSource{err: errors.New("boom")}
	source := NewCachingDetailSource(base, time.Minute)

	if _, err := source.HistoryDetail(context.Background(), "hist_001"); err == nil {
		t.Fatal("expected error")
	}

	base.err = nil
	if _, err := source.HistoryDetail(context.Background(), "hist_001"); err != nil {
		t.Fatalf("expected success after upstream recovery: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected failure not cached, got %d calls", base.calls)
	}
}

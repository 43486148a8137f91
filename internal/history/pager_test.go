package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/snapsight/client/internal/models"
)

// fixtureLister serves pages out of a fixed newest-first item list the
// way the backend does: the cursor is the id of the last item of the
// previous page.
type fixtureLister struct {
	mu      sync.Mutex
	total   int
	calls   int
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fixtureLister) History(_ context.Context, limit int, cursor string) (models.HistoryPage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return models.HistoryPage{}, f.err
	}

	all := make([]models.HistoryItem, f.total)
	for i := range all {
		all[i] = models.HistoryItem{
			ID:        fmt.Sprintf("hist_%03d", i+1),
			FileKey:   fmt.Sprintf("users/123/posts/foto-unik-%d.jpg", i+1),
			AccessURL: fmt.Sprintf("https://my-bucket.s3.aws.com/users/123/posts/foto-unik-%d.jpg", i+1),
			CreatedAt: time.Date(2025, 12, 3, 10, 0, 0, 0, time.UTC).Add(-time.Duration(i) * time.Hour),
		}
	}

	start := 0
	if cursor != "" {
		for i, item := range all {
			if item.ID == cursor {
				start = i + 1
				break
			}
		}
	}

	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	items := all[start:end]

	hasNext := end < len(all)
	info := models.PageInfo{Limit: limit, HasNextPage: hasNext}
	if hasNext && len(items) > 0 {
		next := items[len(items)-1].ID
		info.NextCursor = &next
	}

	return models.HistoryPage{Items: items, PageInfo: info}, nil
}

func (f *fixtureLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestPagerWalksAllPages(t *testing.T) {
	lister := &fixtureLister{total: 50}
	pager := NewPager(lister, 20)

	pager.LoadFirstPage(context.Background())
	if pager.Status() != StatusSuccess {
		t.Fatalf("expected success got %s (%s)", pager.Status(), pager.Err())
	}
	if got := len(pager.Items()); got != 20 {
		t.Fatalf("expected 20 items got %d", got)
	}

	info := pager.PageInfo()
	if !info.HasNextPage || info.NextCursor == nil || *info.NextCursor != "hist_020" {
		t.Fatalf("unexpected page info %+v", info)
	}

	pager.FetchNextPage(context.Background())
	items := pager.Items()
	if len(items) != 40 {
		t.Fatalf("expected 40 items got %d", len(items))
	}
	if items[20].ID != "hist_021" || items[39].ID != "hist_040" {
		t.Fatalf("expected hist_021..hist_040 appended, got %s..%s", items[20].ID, items[39].ID)
	}
	info = pager.PageInfo()
	if !info.HasNextPage || info.NextCursor == nil || *info.NextCursor != "hist_040" {
		t.Fatalf("unexpected page info %+v", info)
	}

	pager.FetchNextPage(context.Background())
	if got := len(pager.Items()); got != 50 {
		t.Fatalf("expected 50 items got %d", got)
	}
	info = pager.PageInfo()
	if info.HasNextPage || info.NextCursor != nil {
		t.Fatalf("expected exhausted pagination, got %+v", info)
	}

	// Exhausted pagination makes further calls no-ops.
	calls := lister.callCount()
	pager.FetchNextPage(context.Background())
	if lister.callCount() != calls {
		t.Fatal("expected no fetch once hasNextPage is false")
	}
}

func TestPagerSingleFlight(t *testing.T) {
	lister := &fixtureLister{
		total:   50,
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	pager := NewPager(lister, 20)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pager.LoadFirstPage(context.Background())
	}()

	<-lister.started

	// Rapid second call while the first is in flight is dropped.
	pager.FetchNextPage(context.Background())
	if got := lister.callCount(); got != 1 {
		t.Fatalf("expected exactly one network call got %d", got)
	}

	close(lister.block)
	wg.Wait()

	if pager.Status() != StatusSuccess {
		t.Fatalf("expected success got %s", pager.Status())
	}
}

func TestPagerFailurePreservesItems(t *testing.T) {
	lister := &fixtureLister{total: 50}
	pager := NewPager(lister, 20)

	pager.LoadFirstPage(context.Background())
	if got := len(pager.Items()); got != 20 {
		t.Fatalf("expected 20 items got %d", got)
	}

	lister.err = errors.New("history fetch failed")
	pager.FetchNextPage(context.Background())

	if pager.Status() != StatusError {
		t.Fatalf("expected error status got %s", pager.Status())
	}
	if pager.Err() == "" {
		t.Fatal("expected failure message")
	}
	if got := len(pager.Items()); got != 20 {
		t.Fatalf("failed load-more must keep existing items, got %d", got)
	}

	// Recovery: clearing the failure lets the next fetch proceed.
	lister.err = nil
	pager.FetchNextPage(context.Background())
	if pager.Status() != StatusSuccess {
		t.Fatalf("expected success after retry got %s", pager.Status())
	}
	if got := len(pager.Items()); got != 40 {
		t.Fatalf("expected 40 items after retry got %d", got)
	}
}

func TestPagerFirstPageReplaces(t *testing.T) {
	lister := &fixtureLister{total: 30}
	pager := NewPager(lister, 20)

	pager.LoadFirstPage(context.Background())
	pager.FetchNextPage(context.Background())
	if got := len(pager.Items()); got != 30 {
		t.Fatalf("expected 30 items got %d", got)
	}

	pager.LoadFirstPage(context.Background())
	if got := len(pager.Items()); got != 20 {
		t.Fatalf("expected refresh to replace the list, got %d items", got)
	}
}

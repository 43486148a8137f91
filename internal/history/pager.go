package history

import (
	"context"
	"sync"

	"github.com/snapsight/client/internal/models"
)

// Status names the pager's fetch state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Lister fetches one page of the generation history.
type Lister interface {
	History(ctx context.Context, limit int, cursor string) (models.HistoryPage, error)
}

// DefaultPageSize is used when no limit is configured.
const DefaultPageSize = 20

// Pager accumulates cursor-paginated history pages. Pages are appended in
// server order (newest first) without client-side deduplication; the
// server guarantees disjoint pages under a stable cursor. Fetches are
// single-flight: a call while one is in flight is dropped silently.
type Pager struct {
	lister Lister
	limit  int

	mu       sync.Mutex
	inFlight bool
	items    []models.HistoryItem
	pageInfo models.PageInfo
	status   Status
	err      string
}

// NewPager constructs a Pager fetching pages of the given size.
func NewPager(lister Lister, limit int) *Pager {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return &Pager{
		lister:   lister,
		limit:    limit,
		status:   StatusIdle,
		pageInfo: models.PageInfo{Limit: limit, HasNextPage: true},
	}
}

// LoadFirstPage fetches page one and replaces the accumulated list.
// It is dropped silently while another fetch is in flight.
func (p *Pager) LoadFirstPage(ctx context.Context) {
	p.fetch(ctx, "")
}

// FetchNextPage fetches the page after the stored cursor and appends it.
// It is a no-op when there is no next page or a fetch is in flight.
func (p *Pager) FetchNextPage(ctx context.Context) {
	p.mu.Lock()
	hasNext := p.pageInfo.HasNextPage
	cursor := ""
	if p.pageInfo.NextCursor != nil {
		cursor = *p.pageInfo.NextCursor
	}
	p.mu.Unlock()

	if !hasNext {
		return
	}
	p.fetch(ctx, cursor)
}

func (p *Pager) fetch(ctx context.Context, cursor string) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	p.status = StatusLoading
	p.err = ""
	p.mu.Unlock()

	page, err := p.lister.History(ctx, p.limit, cursor)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false

	if err != nil {
		// Non-destructive failure: previously loaded items stay.
		p.status = StatusError
		p.err = err.Error()
		return
	}

	if cursor == "" {
		p.items = page.Items
	} else {
		p.items = append(p.items, page.Items...)
	}
	p.pageInfo = page.PageInfo
	p.status = StatusSuccess
}

// Items returns a copy of the accumulated list.
func (p *Pager) Items() []models.HistoryItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	items := make([]models.HistoryItem, len(p.items))
	copy(items, p.items)
	return items
}

// PageInfo returns the most recent pagination state.
func (p *Pager) PageInfo() models.PageInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pageInfo
}

// Status returns the current fetch status.
func (p *Pager) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Err returns the last failure message, empty outside the error status.
func (p *Pager) Err() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

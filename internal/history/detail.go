package history

import (
	"context"
	"sync"
	"time"

	"github.com/snapsight/client/internal/models"
)

// DetailSource fetches the full analysis payload for one history entry.
type DetailSource interface {
	HistoryDetail(ctx context.Context, id string) (models.DetailedHistoryItem, error)
}

type detailEntry struct {
	item    models.DetailedHistoryItem
	expires time.Time
}

// CachingDetailSource wraps another DetailSource with a TTL-based
// in-memory cache. History entries are immutable server-side, so a short
// TTL only bounds memory, not staleness.
type CachingDetailSource struct {
	base DetailSource
	ttl  time.Duration

	mu    sync.RWMutex
	items map[string]detailEntry
}

// NewCachingDetailSource returns a DetailSource that caches lookups for
// the provided TTL.
func NewCachingDetailSource(base DetailSource, ttl time.Duration) *CachingDetailSource {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingDetailSource{
		base:  base,
		ttl:   ttl,
		items: make(map[string]detailEntry),
	}
}

// HistoryDetail returns the cached entry when available, otherwise it
// delegates to the underlying source and stores the result.
func (c *CachingDetailSource) HistoryDetail(ctx context.Context, id string) (models.DetailedHistoryItem, error) {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.items[id]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.item, nil
	}

	item, err := c.base.HistoryDetail(ctx, id)
	if err != nil {
		return models.DetailedHistoryItem{}, err
	}

	c.mu.Lock()
	c.items[id] = detailEntry{item: item, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return item, nil
}

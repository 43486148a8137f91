package resultcache

import (
	"sync"

	"github.com/snapsight/client/internal/models"
)

// Slot is the single shared cell holding the most recent analysis record
// for the results view. Each workflow run overwrites it; the results view
// consumes it exactly once. It replaces the original design's ambient
// session-storage hand-off with an explicitly injected holder.
type Slot interface {
	// Put stores rec, overwriting any prior record.
	Put(rec models.AnalysisRecord) error
	// Take returns the stored record and clears the slot. The second
	// return reports whether a record was present.
	Take() (models.AnalysisRecord, bool)
	// Peek returns the stored record without clearing it.
	Peek() (models.AnalysisRecord, bool)
}

// MemorySlot keeps the record in process memory.
type MemorySlot struct {
	mu     sync.Mutex
	record models.AnalysisRecord
	filled bool
}

// NewMemorySlot constructs an empty in-memory slot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

// Put stores rec, overwriting any prior record.
func (s *MemorySlot) Put(rec models.AnalysisRecord) error {
	s.mu.Lock()
	s.record = rec
	s.filled = true
	s.mu.Unlock()
	return nil
}

// Take returns and clears the stored record.
func (s *MemorySlot) Take() (models.AnalysisRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.filled {
		return models.AnalysisRecord{}, false
	}
	rec := s.record
	s.record = models.AnalysisRecord{}
	s.filled = false
	return rec, true
}

// Peek returns the stored record without clearing it.
func (s *MemorySlot) Peek() (models.AnalysisRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record, s.filled
}

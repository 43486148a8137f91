package session

import (
	"sync"
	"time"
)

// MemoryStore holds the token in process memory, scoping it to the
// lifetime of the current run. Useful for tests and one-shot flows.
type MemoryStore struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// NewMemoryStore constructs an empty in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Get returns the stored token unless it is absent or expired.
func (s *MemoryStore) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", false
	}
	if !s.expiresAt.IsZero() && s.now().After(s.expiresAt) {
		return "", false
	}
	return s.token, true
}

// Set replaces the stored token.
func (s *MemoryStore) Set(token string, opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	if opts.PersistDays > 0 {
		s.expiresAt = s.now().Add(time.Duration(opts.PersistDays) * 24 * time.Hour)
	} else {
		// Session-scoped: lives until the process exits.
		s.expiresAt = time.Time{}
	}
	return nil
}

// Clear removes the stored token.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
	return nil
}

// WithNowFunc allows tests to override the time source.
func (s *MemoryStore) WithNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

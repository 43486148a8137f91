package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore persists the token to a JSON file so it survives process
// restarts, the way the browser client keeps it in a cookie.
type FileStore struct {
	path string

	mu  sync.Mutex
	now func() time.Time
}

type storedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewFileStore constructs a Store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Get reads the persisted token. Missing or expired files report absence;
// a corrupt file is treated the same way rather than surfaced, since Get
// must never fail.
func (s *FileStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}

	var stored storedToken
	if err := json.Unmarshal(data, &stored); err != nil {
		return "", false
	}
	if stored.Token == "" {
		return "", false
	}
	if s.now().After(stored.ExpiresAt) {
		return "", false
	}
	return stored.Token, true
}

// Set writes the token with an expiry derived from opts. Without an
// explicit persistence window the token gets the short session TTL.
func (s *FileStore) Set(token string, opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ttl := sessionTTL
	if opts.PersistDays > 0 {
		ttl = time.Duration(opts.PersistDays) * 24 * time.Hour
	}

	stored := storedToken{
		Token:     token,
		ExpiresAt: s.now().Add(ttl).UTC(),
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode session token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write session token: %w", err)
	}
	return nil
}

// Clear deletes the token file. A missing file is not an error.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session token: %w", err)
	}
	return nil
}

// WithNowFunc allows tests to override the time source.
func (s *FileStore) WithNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

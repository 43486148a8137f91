package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// LocalStorage keeps uploaded objects in memory. The dev server uses it so
// the full presign-then-PUT flow works without an object store; presigned
// URLs point back at the server's own upload endpoint.
type LocalStorage struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string][]byte
}

// NewLocalStorage constructs an in-memory store whose URLs are rooted at
// baseURL (the dev server's own address).
func NewLocalStorage(baseURL string) *LocalStorage {
	return &LocalStorage{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		objects: make(map[string][]byte),
	}
}

// PresignPut returns an upload URL served by the dev server itself.
func (s *LocalStorage) PresignPut(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", fmt.Errorf("local storage: empty key")
	}
	return fmt.Sprintf("%s/uploads/%s", s.baseURL, key), nil
}

// Save stores the content under key and returns its public location.
func (s *LocalStorage) Save(_ context.Context, key string, r io.Reader) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", fmt.Errorf("local storage: empty key")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("local storage read %s: %w", key, err)
	}

	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()

	return s.PublicURL(key), nil
}

// PublicURL returns the location the object is readable from once uploaded.
func (s *LocalStorage) PublicURL(key string) string {
	return fmt.Sprintf("%s/uploads/%s", s.baseURL, strings.TrimLeft(key, "/"))
}

// Get returns the stored object bytes.
func (s *LocalStorage) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[strings.TrimLeft(key, "/")]
	return data, ok
}

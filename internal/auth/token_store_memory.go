package auth

import (
	"context"
	"sync"
)

// NewInMemoryTokenStore returns a TokenStore backed by an in-memory map.
func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{tokens: make(map[string]Token)}
}

// InMemoryTokenStore implements TokenStore for tests and local development.
type InMemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]Token
}

// Save persists the provided token record.
func (s *InMemoryTokenStore) Save(_ context.Context, token Token) error {
	s.mu.Lock()
	s.tokens[token.Value] = token
	s.mu.Unlock()
	return nil
}

// Find retrieves a token by its value.
func (s *InMemoryTokenStore) Find(_ context.Context, value string) (Token, error) {
	s.mu.RLock()
	token, ok := s.tokens[value]
	s.mu.RUnlock()
	if !ok {
		return Token{}, ErrTokenNotFound
	}
	return token, nil
}

// Delete removes the token record.
func (s *InMemoryTokenStore) Delete(_ context.Context, value string) error {
	s.mu.Lock()
	delete(s.tokens, value)
	s.mu.Unlock()
	return nil
}

// Has reports whether a token value exists. Useful for tests.
func (s *InMemoryTokenStore) Has(value string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tokens[value]
	return ok
}

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"
)

var (
	// ErrTokenNotFound indicates the presented token does not map to an
	// active session.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenExpired indicates the token is past its expiry and can no
	// longer be used.
	ErrTokenExpired = errors.New("token expired")
)

// TokenStore persists issued tokens so sessions survive process restarts.
type TokenStore interface {
	Save(ctx context.Context, token Token) error
	Find(ctx context.Context, value string) (Token, error)
	Delete(ctx context.Context, value string) error
}

// Token is a bearer credential issued to a signed-in user.
type Token struct {
	Value     string
	UserID    string
	ExpiresAt time.Time
}

// Manager issues and validates opaque bearer tokens backed by a
// persistent store.
type Manager struct {
	ttl   time.Duration
	store TokenStore
	now   func() time.Time
}

// NewManager constructs a Manager issuing tokens with the provided TTL.
func NewManager(ttl time.Duration, store TokenStore) *Manager {
	if store == nil {
		panic("auth: token store must not be nil")
	}
	return &Manager{ttl: ttl, store: store, now: time.Now}
}

// Issue creates a new bearer token for the provided user identifier.
func (m *Manager) Issue(ctx context.Context, userID string) (Token, error) {
	if userID == "" {
		return Token{}, errors.New("user id must be provided")
	}

	value, err := randomToken()
	if err != nil {
		return Token{}, err
	}

	token := Token{
		Value:     value,
		UserID:    userID,
		ExpiresAt: m.now().UTC().Add(m.ttl),
	}

	if err := m.store.Save(ctx, token); err != nil {
		return Token{}, err
	}
	return token, nil
}

// Validate resolves a presented token to its user id. Expired tokens are
// removed from the store as a side effect.
func (m *Manager) Validate(ctx context.Context, value string) (string, error) {
	if value == "" {
		return "", ErrTokenNotFound
	}

	token, err := m.store.Find(ctx, value)
	if err != nil {
		return "", err
	}

	if m.now().UTC().After(token.ExpiresAt) {
		_ = m.store.Delete(ctx, value)
		return "", ErrTokenExpired
	}

	return token.UserID, nil
}

// Revoke removes the token from the active store.
func (m *Manager) Revoke(ctx context.Context, value string) {
	if value == "" {
		return
	}
	_ = m.store.Delete(ctx, value)
}

// WithNowFunc allows tests to override the time source.
func (m *Manager) WithNowFunc(now func() time.Time) {
	m.now = now
}

func randomToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

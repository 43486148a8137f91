package session

import "time"

// Options controls how long a stored token survives.
type Options struct {
	// PersistDays keeps the token for the given number of days when
	// positive ("remember me"). Zero scopes the token to the current
	// session only.
	PersistDays int
}

// Store owns the authentication credential shared read-only by every
// component that calls an authenticated endpoint. It is written only by
// the sign-in, sign-up, and OAuth-callback flows and cleared at sign-out.
type Store interface {
	// Get returns the current token. Absence is a normal state reported
	// as ("", false), never an error.
	Get() (string, bool)
	Set(token string, opts Options) error
	Clear() error
}

// sessionTTL bounds tokens stored without an explicit persistence window.
// A CLI has no browser session to scope to, so "session only" becomes a
// short expiry instead.
const sessionTTL = 12 * time.Hour

package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthenticated indicates no credential is present before starting
	// a privileged flow. No request is made in this state.
	ErrUnauthenticated = errors.New("not signed in")
	// ErrUnauthorized indicates the server rejected the presented credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnsupportedMediaType indicates the content type is outside the
	// image allow-list.
	ErrUnsupportedMediaType = errors.New("unsupported content type")
	// ErrAnalysisTimeout indicates the analysis call exceeded its dedicated
	// timeout. The run may be retried from scratch.
	ErrAnalysisTimeout = errors.New("analysis timed out")
	// ErrAnalysisNotFound indicates the file key did not resolve to an
	// accessible object.
	ErrAnalysisNotFound = errors.New("analysis target not found")
	// ErrInvalidHistoryID indicates a malformed history identifier.
	ErrInvalidHistoryID = errors.New("invalid history id")
)

// Error carries the HTTP status and structured error body returned by the
// backend. It unwraps to the taxonomy sentinel matching the failure so
// callers can branch with errors.Is.
type Error struct {
	Status  int
	Code    string
	Message string

	sentinel error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
}

// Unwrap exposes the taxonomy sentinel, when one applies.
func (e *Error) Unwrap() error {
	return e.sentinel
}

// Backend error codes observed in structured error bodies.
const (
	codeAuthRequired     = "AUTH_REQUIRED"
	codeImageFetchFailed = "IMAGE_FETCH_FAILED"
	codeInvalidID        = "INVALID_ID"
	codeNotFound         = "NOT_FOUND"
)

// classify maps a response status and error body onto the taxonomy.
func classify(status int, code, message string) *Error {
	e := &Error{Status: status, Code: code, Message: message}

	switch {
	case status == http.StatusUnauthorized:
		e.sentinel = ErrUnauthorized
	case status == http.StatusUnsupportedMediaType:
		e.sentinel = ErrUnsupportedMediaType
	case status == http.StatusNotFound && code == codeImageFetchFailed:
		e.sentinel = ErrAnalysisNotFound
	case status == http.StatusBadRequest && code == codeInvalidID:
		e.sentinel = ErrInvalidHistoryID
	}

	return e
}

// withSentinel overrides the taxonomy sentinel for endpoint-specific
// mappings, such as the presign endpoint reporting unsupported content
// types as a plain 400.
func (e *Error) withSentinel(err error) *Error {
	e.sentinel = err
	return e
}

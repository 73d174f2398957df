package internal

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionActive is returned when a session is created while one is already active
var ErrSessionActive = errors.New("a session is already active")

// NetworkError represents a transport failure reaching the chat API
type NetworkError struct {
	Op  string // "create_session", "history", "delete_session", "chat"
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError represents a non-2xx response or a payload that could not be decoded
type APIError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("api error [%s]: %v", e.Op, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("api error [%s]: %d %s (%s)", e.Op, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
	}
	return fmt.Sprintf("api error [%s]: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ValidationError represents bad caller input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SessionNotFoundError is returned when the server no longer knows a session
type SessionNotFoundError struct {
	SessionID string
	Err       error
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.SessionID)
}

func (e *SessionNotFoundError) Unwrap() error {
	return e.Err
}

// IsSessionNotFound reports whether err carries a SessionNotFoundError
func IsSessionNotFound(err error) bool {
	var target *SessionNotFoundError
	return errors.As(err, &target)
}

// StorageError represents errors accessing the tab-scoped store or the cache directory
type StorageError struct {
	Path string
	Op   string // "open", "get", "set", "delete", "migrate"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

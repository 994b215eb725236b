package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// DefaultMessage is shown when nothing better can be extracted.
const DefaultMessage = "Something went wrong. Please try again."

var (
	// ErrUnauthorized matches any *Error with status 401.
	ErrUnauthorized = errors.New("backend: unauthorized")
	// ErrTransport wraps failures to reach the backend at all.
	ErrTransport = errors.New("backend: transport failure")
	ErrDecode    = errors.New("backend: malformed response")
	ErrBaseURL   = errors.New("backend: invalid base url")
)

// Error is a non-2xx backend response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend: status %d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// Message returns the user-facing text for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return DefaultMessage
}

// StatusOf returns the backend status behind err, or 0.
func StatusOf(err error) int {
	var be *Error
	if errors.As(err, &be) {
		return be.Status
	}
	return 0
}

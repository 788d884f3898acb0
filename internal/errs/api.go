package errs

import (
	"fmt"
	"net/http"
)

// APIError is an application-level failure: a non-2xx status or an envelope with success=false.
type APIError struct {
	Status  int
	Message string
}

// Error returns the server-provided message or an HTTP status fallback.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// Is maps well-known statuses onto sentinels so callers can use errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

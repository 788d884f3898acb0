// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across client layers.
var (
	// ErrUnauthorized indicates the API rejected the bearer credential (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller is authenticated but not allowed (HTTP 403).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the requested entity does not exist (HTTP 404).
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates client-side input was rejected before any network call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoData indicates a successful envelope without the payload the caller expected.
	ErrNoData = errors.New("response has no data")

	// ErrNotAuthenticated indicates no session token is stored.
	ErrNotAuthenticated = errors.New("not authenticated (login required)")
)

package domain

import "errors"

var (
	// ErrInvalidInput is returned for a missing or malformed FID, limit,
	// day filter or cursor.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a cast hash does not resolve.
	ErrNotFound = errors.New("cast not found")

	// ErrUpstreamUnavailable is returned when a listing or conversation call
	// fails (network error, non-2xx status, timeout).
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMisconfigured is returned when a required credential or setting for
	// the selected upstream is missing.
	ErrMisconfigured = errors.New("misconfigured")

	// ErrSessionNotFound is returned for an unknown or expired session id.
	ErrSessionNotFound = errors.New("session not found")
)

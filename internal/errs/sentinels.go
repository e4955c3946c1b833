// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the caller's role or ownership does not permit the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates a wrong state for the requested transition or a duplicate active record.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates malformed request fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCode indicates a handover code, PIN or reset code mismatch.
	ErrInvalidCode = errors.New("invalid code")

	// ErrUnavailable indicates the persistence layer could not be reached.
	ErrUnavailable = errors.New("unavailable")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")
)

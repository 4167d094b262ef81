// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service/client layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates optimistic concurrency failure (base version mismatch).
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller is authenticated but lacks the board role.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates a temporary lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidArgument indicates local validation failed before any request was made.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInviteExpired indicates the invite token exists but its expiry has passed.
	ErrInviteExpired = errors.New("invite expired")

	// ErrUnavailable indicates a transient backend or network failure worth retrying.
	ErrUnavailable = errors.New("unavailable")

	// ErrDanglingEdge indicates an edge endpoint does not reference an existing node.
	ErrDanglingEdge = errors.New("dangling edge")
)

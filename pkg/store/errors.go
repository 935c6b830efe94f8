package store

import "errors"

// Sentinel errors returned by the store packages. Callers should use
// errors.Is to match them; they are wrapped with context via %w at each
// call site.
var (
	// ErrNotFound is returned when a session, event or rule lookup finds
	// nothing.
	ErrNotFound = errors.New("store: not found")

	// ErrSessionInactive is returned by Append when the target session's
	// status is already "completed". Per spec.md §9, appends after
	// completion are rejected as a protocol error rather than silently
	// accepted.
	ErrSessionInactive = errors.New("store: session is not active")

	// ErrAlreadyCompleted is returned by End when the session has already
	// transitioned to completed (callers should fall back to returning the
	// existing summary/disposition instead of treating this as failure).
	ErrAlreadyCompleted = errors.New("store: session already completed")
)

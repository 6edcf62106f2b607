package health

import "errors"

var (
	// ErrCheckFailed is returned by Run when at least one check fails.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout marks a check that was still running at the deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckPanicked marks a check that panicked instead of returning.
	ErrCheckPanicked = errors.New("health: check panicked")
)

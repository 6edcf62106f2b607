package redis

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyConnectionURL = errors.New("redis: empty connection URL")
	ErrFailedToParseURL   = errors.New("redis: failed to parse connection URL")
	ErrInvalidEndpoint    = errors.New("redis: invalid endpoint")
	ErrHealthcheckFailed  = errors.New("redis: healthcheck failed")

	// ErrConnectionBroken is returned when the session to the server is no
	// longer usable: transport failure, cancellation mid-command, or
	// invalidation by the owning pool.
	ErrConnectionBroken = errors.New("redis: connection broken")

	// ErrConnectionFailed is returned when a new session cannot be opened.
	ErrConnectionFailed = fmt.Errorf("%w: failed to establish connection", ErrConnectionBroken)

	// ErrArgumentOutOfRange is returned for a logical database outside
	// [MinDB, MaxDB] and for malformed command arguments.
	ErrArgumentOutOfRange = errors.New("redis: argument out of range")

	// ErrCommandFailed is returned when the server replied with an error.
	ErrCommandFailed = errors.New("redis: command failed")
)

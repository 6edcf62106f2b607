package pool

import "errors"

// Sentinel errors for pool operations.
var (
	// ErrConfigInvalid is returned at construction for unusable settings.
	ErrConfigInvalid = errors.New("pool: invalid configuration")

	// ErrPoolExhausted is returned when no connection slot frees up in time.
	// The caller may retry later.
	ErrPoolExhausted = errors.New("pool: exhausted")

	// ErrPoolClosed is returned when borrowing from a closed pool.
	ErrPoolClosed = errors.New("pool: closed")

	// ErrNoPrimaryAvailable is returned when no arbiter names a primary
	// within the discovery window.
	ErrNoPrimaryAvailable = errors.New("pool: no primary available")

	// ErrCrossShard is returned when the keys of a multi-key command live
	// on different shards.
	ErrCrossShard = errors.New("pool: keys span multiple shards")
)

package pool

import (
	"fmt"
	"time"
)

// Config describes sizing and blocking policy for a connection pool.
type Config struct {
	// MaxTotal caps open connections, borrowed plus idle.
	MaxTotal int
	// MaxIdle caps connections kept warm after return.
	MaxIdle int
	// MinIdle is the number of connections pre-warmed and topped up.
	MinIdle int
	// MaxWait bounds how long a borrower waits on a saturated pool.
	MaxWait time.Duration
	// BlockWhenExhausted makes borrowers wait up to MaxWait instead of
	// failing immediately.
	BlockWhenExhausted bool
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxTotal:           8,
		MaxIdle:            8,
		MinIdle:            0,
		MaxWait:            3 * time.Second,
		BlockWhenExhausted: true,
	}
}

// Validate enforces 0 ≤ MinIdle ≤ MaxIdle ≤ MaxTotal and MaxWait ≥ 0.
func (c Config) Validate() error {
	switch {
	case c.MaxTotal < 1:
		return fmt.Errorf("%w: maxTotal %d must be at least 1", ErrConfigInvalid, c.MaxTotal)
	case c.MinIdle < 0:
		return fmt.Errorf("%w: minIdle %d is negative", ErrConfigInvalid, c.MinIdle)
	case c.MinIdle > c.MaxIdle:
		return fmt.Errorf("%w: minIdle %d exceeds maxIdle %d", ErrConfigInvalid, c.MinIdle, c.MaxIdle)
	case c.MaxIdle > c.MaxTotal:
		return fmt.Errorf("%w: maxIdle %d exceeds maxTotal %d", ErrConfigInvalid, c.MaxIdle, c.MaxTotal)
	case c.MaxWait < 0:
		return fmt.Errorf("%w: maxWait %s is negative", ErrConfigInvalid, c.MaxWait)
	}
	return nil
}

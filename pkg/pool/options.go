package pool

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/redisgate/pkg/logger"
	"github.com/dmitrymomot/redisgate/pkg/redis"
)

const (
	defaultShutdownTimeout  = 5 * time.Second
	defaultDiscoveryTimeout = 5 * time.Second
	defaultWatchRetry       = time.Second
)

// Option configures pool behavior.
type Option func(*options)

type options struct {
	logger           *slog.Logger
	dialOpts         []redis.Option
	dial             func(ctx context.Context, ep redis.Endpoint) (*redis.Conn, error)
	shutdownTimeout  time.Duration
	discoveryTimeout time.Duration
	watchRetry       time.Duration
	multiKey         MultiKeyPolicy
}

func newOptions(opts ...Option) *options {
	o := &options{
		logger:           logger.NewNope(),
		shutdownTimeout:  defaultShutdownTimeout,
		discoveryTimeout: defaultDiscoveryTimeout,
		watchRetry:       defaultWatchRetry,
		multiKey:         MultiKeyStrict,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.dial == nil {
		dialOpts := o.dialOpts
		o.dial = func(ctx context.Context, ep redis.Endpoint) (*redis.Conn, error) {
			return redis.Dial(ctx, ep, dialOpts...)
		}
	}
	return o
}

// WithLogger sets the logger for pool lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDialOptions sets the options used to open every connection.
func WithDialOptions(opts ...redis.Option) Option {
	return func(o *options) {
		o.dialOpts = append(o.dialOpts, opts...)
	}
}

// WithShutdownTimeout bounds how long Close waits for borrowed connections.
// Default: 5 seconds
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithDiscoveryTimeout bounds primary discovery through the arbiters.
// Default: 5 seconds
func WithDiscoveryTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.discoveryTimeout = d
		}
	}
}

// WithWatchRetry sets the delay before re-subscribing to an arbiter whose
// notification stream ended.
// Default: 1 second
func WithWatchRetry(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.watchRetry = d
		}
	}
}

// WithMultiKeyPolicy sets how a sharded pool treats multi-key commands.
// Default: MultiKeyStrict
func WithMultiKeyPolicy(p MultiKeyPolicy) Option {
	return func(o *options) {
		o.multiKey = p
	}
}

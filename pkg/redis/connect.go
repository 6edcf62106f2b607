package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Option configures how a Conn is dialed.
type Option func(*options)

type options struct {
	retryAttempts int
	retryInterval time.Duration
	readTimeout   time.Duration
	writeTimeout  time.Duration
	dialTimeout   time.Duration
}

func defaultOptions() *options {
	return &options{
		retryAttempts: 1,
		retryInterval: time.Second,
		readTimeout:   3 * time.Second,
		writeTimeout:  3 * time.Second,
		dialTimeout:   5 * time.Second,
	}
}

// WithTimeout sets the per-command socket timeout for reads and writes.
// Default: 3 seconds
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readTimeout = d
		o.writeTimeout = d
	}
}

// WithRetry configures dial retry behavior.
// Default: a single attempt. The wait between attempts grows linearly.
func WithRetry(attempts int, interval time.Duration) Option {
	return func(o *options) {
		o.retryAttempts = attempts
		o.retryInterval = interval
	}
}

// WithReadTimeout sets the timeout for read operations.
// Default: 3 seconds
func WithReadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readTimeout = d
	}
}

// WithWriteTimeout sets the timeout for write operations.
// Default: 3 seconds
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = d
	}
}

// WithDialTimeout sets the timeout for establishing new connections.
// Default: 5 seconds
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

// ClientOptions returns go-redis options for talking to ep with the given
// timeouts. Retries inside go-redis are disabled: a failed command must
// surface to the pool so the session can be discarded.
func ClientOptions(ep Endpoint, opts ...Option) *redis.Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return clientOptions(ep, o)
}

func clientOptions(ep Endpoint, o *options) *redis.Options {
	ro := &redis.Options{
		Addr:            ep.Addr(),
		Password:        ep.Password,
		Protocol:        2,
		DisableIdentity: true,
		MaxRetries:      -1,
		PoolSize:        1,
		MaxIdleConns:    1,
		MinIdleConns:    0,
		DialTimeout:     o.dialTimeout,
		ReadTimeout:     o.readTimeout,
		WriteTimeout:    o.writeTimeout,
	}
	if ep.TLS {
		ro.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: ep.Host}
	}
	return ro
}

// Dial opens one session to ep and verifies it with PING.
// The returned Conn is positioned on database 0.
//
// Example:
//
//	conn, err := redis.Dial(ctx, ep,
//	    redis.WithTimeout(2*time.Second),
//	    redis.WithRetry(5, time.Second),
//	)
func Dial(ctx context.Context, ep Endpoint, opts ...Option) (*Conn, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return connect(ctx, ep, o)
}

// connect establishes a session with retry logic and linear backoff.
func connect(ctx context.Context, ep Endpoint, o *options) (*Conn, error) {
	attempts := max(o.retryAttempts, 1)

	var lastErr error
	for i := range attempts {
		conn := newConn(ep, redis.NewClient(clientOptions(ep, o)))

		err := conn.Ping(ctx).Err()
		if err == nil {
			return conn, nil
		}
		lastErr = err

		_ = conn.Close()

		if i == attempts-1 {
			break
		}
		if waitErr := wait(ctx, time.Duration(i+1)*o.retryInterval); waitErr != nil {
			return nil, errors.Join(ErrConnectionFailed, waitErr)
		}
	}

	return nil, errors.Join(ErrConnectionFailed, lastErr)
}

func wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

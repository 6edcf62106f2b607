package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/redisgate/pkg/logger"
	"github.com/dmitrymomot/redisgate/pkg/pool"
	"github.com/dmitrymomot/redisgate/pkg/redis"
)

// ErrorHandler observes command failures that the catalog turns into
// neutral results.
type ErrorHandler func(ctx context.Context, command string, err error)

// Service exposes the command catalog over any Pool.
//
// Catalog methods never return errors: on failure they return the neutral
// result for their type (empty string, zero, false, nil, empty map) and
// report the error to the logger, the ErrorHandler and the metrics.
// Use Execute when the error itself matters.
type Service struct {
	pool    pool.Pool
	logger  *slog.Logger
	onError ErrorHandler
	metrics *Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger that records swallowed command errors.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithErrorHandler registers a callback for every swallowed command error.
func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Service) {
		s.onError = h
	}
}

// WithMetrics records command latency and failures.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New returns a Service backed by p.
//
// Example:
//
//	p, err := pool.Open(ctx, spec)
//	if err != nil {
//		return err
//	}
//	svc := kv.New(p, kv.WithLogger(log))
//	svc.SetEx(ctx, 3, "k", "v", 600)
func New(p pool.Pool, opts ...Option) *Service {
	s := &Service{
		pool:   p,
		logger: logger.NewNope(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pool returns the pool the service borrows from.
func (s *Service) Pool() pool.Pool {
	return s.pool
}

// checkDB rejects databases outside 0–15 and any database other than 0
// on pools without logical databases.
func (s *Service) checkDB(db int) error {
	if db < redis.MinDB || db > redis.MaxDB {
		return fmt.Errorf("%w: database %d not in [%d,%d]", redis.ErrArgumentOutOfRange, db, redis.MinDB, redis.MaxDB)
	}
	if db != 0 && !s.pool.MultiDB() {
		return fmt.Errorf("%w: database %d on a pool without logical databases", redis.ErrArgumentOutOfRange, db)
	}
	return nil
}

func (s *Service) observe(ctx context.Context, command string, start time.Time, err error) {
	s.metrics.observe(command, time.Since(start), err)
	if err == nil {
		return
	}

	s.logger.ErrorContext(ctx, "cache command failed",
		slog.String("command", command),
		slog.String("kind", errorKind(err)),
		slog.Any("error", err),
	)
	if s.onError != nil {
		s.onError(ctx, command, err)
	}
}

// errorKind names the failure class for logs and metric labels.
func errorKind(err error) string {
	switch {
	case errors.Is(err, pool.ErrCrossShard):
		return "cross_shard"
	case errors.Is(err, pool.ErrPoolExhausted):
		return "pool_exhausted"
	case errors.Is(err, pool.ErrPoolClosed):
		return "pool_closed"
	case errors.Is(err, pool.ErrNoPrimaryAvailable):
		return "no_primary"
	case errors.Is(err, redis.ErrArgumentOutOfRange):
		return "argument"
	case errors.Is(err, redis.ErrCommandFailed):
		return "command"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, redis.ErrConnectionBroken):
		return "connection"
	}
	return "other"
}

// maybe carries a single-value reply that may be absent.
type maybe[T any] struct {
	val T
	ok  bool
}

// optional turns a miss into an absent value instead of an error.
func optional[T any](v T, err error) (maybe[T], error) {
	if errors.Is(err, goredis.Nil) {
		return maybe[T]{}, nil
	}
	if err != nil {
		return maybe[T]{}, err
	}
	return maybe[T]{val: v, ok: true}, nil
}

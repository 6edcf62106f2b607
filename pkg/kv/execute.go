package kv

import (
	"context"
	"time"

	"github.com/dmitrymomot/redisgate/pkg/pool"
	"github.com/dmitrymomot/redisgate/pkg/redis"
)

// Command runs on a borrowed connection already positioned on the
// requested database. It must not keep conn after returning.
type Command[T any] func(ctx context.Context, conn *redis.Conn) (T, error)

// Execute borrows a connection routed by keys, selects db, runs cmd and
// returns the connection on every exit path, including a panic inside cmd.
// Unlike the catalog methods it returns the error: server replies are
// wrapped in redis.ErrCommandFailed, failures the connection observed in
// redis.ErrConnectionBroken, and errors of cmd's own making come back as is.
//
// Example:
//
//	n, err := kv.Execute(ctx, svc, 0, []string{"hits"}, func(ctx context.Context, c *redis.Conn) (int64, error) {
//	    return c.IncrBy(ctx, "hits", 5).Result()
//	})
func Execute[T any](ctx context.Context, s *Service, db int, keys []string, cmd Command[T]) (T, error) {
	if err := s.checkDB(db); err != nil {
		var zero T
		return zero, err
	}
	return borrow(ctx, s.pool, db, keys, cmd)
}

// ExecuteAll runs cmd once per shard of a partitioned pool, concurrently,
// and returns the results in shard order. On any other pool it runs cmd
// once. It suits keyspace-wide commands such as KEYS, SCAN or FLUSHDB.
func ExecuteAll[T any](ctx context.Context, s *Service, db int, cmd Command[T]) ([]T, error) {
	part, ok := s.pool.(pool.Partitioned)
	if !ok {
		res, err := Execute(ctx, s, db, nil, cmd)
		if err != nil {
			return nil, err
		}
		return []T{res}, nil
	}
	return onEveryShard(ctx, s, part, db, cmd)
}

// borrow is the scoped-acquisition core shared by every command.
func borrow[T any](ctx context.Context, p pool.Pool, db int, keys []string, cmd Command[T]) (res T, err error) {
	conn, err := p.Get(ctx, keys...)
	if err != nil {
		return res, err
	}
	defer func() {
		if r := recover(); r != nil {
			conn.MarkBroken()
			p.Put(conn)
			panic(r)
		}
		p.Put(conn)
	}()

	if p.MultiDB() {
		if err := conn.SelectDB(ctx, db); err != nil {
			return res, err
		}
	}

	res, err = cmd(ctx, conn)
	if err != nil {
		var zero T
		return zero, conn.Classify(err)
	}
	return res, nil
}

// do runs cmd through Execute and swallows the error into the neutral
// result, recording it first.
func do[T any](ctx context.Context, s *Service, name string, db int, keys []string, cmd Command[T]) T {
	return record(ctx, s, name, func() (T, error) {
		return Execute(ctx, s, db, keys, cmd)
	})
}

func record[T any](ctx context.Context, s *Service, name string, fn func() (T, error)) T {
	start := time.Now()
	res, err := fn()
	s.observe(ctx, name, start, err)
	if err != nil {
		var zero T
		return zero
	}
	return res
}

// fail records an argument error detected before any borrow.
func fail[T any](ctx context.Context, s *Service, name string, err error) T {
	return record(ctx, s, name, func() (T, error) {
		var zero T
		return zero, err
	})
}

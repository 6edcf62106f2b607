package kv

import (
	"context"

	"github.com/dmitrymomot/redisgate/pkg/redis"
)

// Keys returns every key matching pattern. On a sharded pool every shard
// is scanned and the results concatenated.
//
// KEYS walks the whole keyspace on the server and blocks it meanwhile;
// keep it off hot paths.
func (s *Service) Keys(ctx context.Context, db int, pattern string) []string {
	return record(ctx, s, "keys", func() ([]string, error) {
		per, err := ExecuteAll(ctx, s, db, func(ctx context.Context, c *redis.Conn) ([]string, error) {
			return c.Keys(ctx, pattern).Result()
		})
		if err != nil {
			return nil, err
		}
		var out []string
		for _, keys := range per {
			out = append(out, keys...)
		}
		return out, nil
	})
}

// Type returns the type of the value at key, "none" if it does not exist.
func (s *Service) Type(ctx context.Context, db int, key string) string {
	return do(ctx, s, "type", db, []string{key}, func(ctx context.Context, c *redis.Conn) (string, error) {
		return c.Type(ctx, key).Result()
	})
}

// FlushDB removes every key of db. On a sharded pool every shard is flushed.
func (s *Service) FlushDB(ctx context.Context, db int) bool {
	return record(ctx, s, "flushdb", func() (bool, error) {
		_, err := ExecuteAll(ctx, s, db, func(ctx context.Context, c *redis.Conn) (bool, error) {
			return status(c.FlushDB(ctx).Err())
		})
		return err == nil, err
	})
}

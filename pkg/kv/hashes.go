package kv

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/redisgate/pkg/redis"
)

// HSet sets field in the hash at key and returns 1 if the field is new.
func (s *Service) HSet(ctx context.Context, db int, key, field, value string) int64 {
	return do(ctx, s, "hset", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.HSet(ctx, key, field, value).Result()
	})
}

// HSetNX sets field only if it does not exist yet.
func (s *Service) HSetNX(ctx context.Context, db int, key, field, value string) bool {
	return do(ctx, s, "hsetnx", db, []string{key}, func(ctx context.Context, c *redis.Conn) (bool, error) {
		return c.HSetNX(ctx, key, field, value).Result()
	})
}

// HMSet sets every field of fields in the hash at key.
func (s *Service) HMSet(ctx context.Context, db int, key string, fields map[string]string) bool {
	if len(fields) == 0 {
		return fail[bool](ctx, s, "hmset", fmt.Errorf("%w: no fields", redis.ErrArgumentOutOfRange))
	}
	return do(ctx, s, "hmset", db, []string{key}, func(ctx context.Context, c *redis.Conn) (bool, error) {
		return c.HMSet(ctx, key, fields).Result()
	})
}

// HGet returns the value of field and whether it exists.
func (s *Service) HGet(ctx context.Context, db int, key, field string) (string, bool) {
	m := do(ctx, s, "hget", db, []string{key}, func(ctx context.Context, c *redis.Conn) (maybe[string], error) {
		return optional(c.HGet(ctx, key, field).Result())
	})
	return m.val, m.ok
}

// HMGet returns the values of fields in order; missing fields are nil.
func (s *Service) HMGet(ctx context.Context, db int, key string, fields ...string) []*string {
	return do(ctx, s, "hmget", db, []string{key}, func(ctx context.Context, c *redis.Conn) ([]*string, error) {
		vals, err := c.HMGet(ctx, key, fields...).Result()
		if err != nil {
			return nil, err
		}
		return stringPtrs(vals), nil
	})
}

// HIncrBy increments the integer field by n.
func (s *Service) HIncrBy(ctx context.Context, db int, key, field string, n int64) int64 {
	return do(ctx, s, "hincrby", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.HIncrBy(ctx, key, field, n).Result()
	})
}

// HExists reports whether field exists in the hash at key.
func (s *Service) HExists(ctx context.Context, db int, key, field string) bool {
	return do(ctx, s, "hexists", db, []string{key}, func(ctx context.Context, c *redis.Conn) (bool, error) {
		return c.HExists(ctx, key, field).Result()
	})
}

// HLen returns the number of fields in the hash at key.
func (s *Service) HLen(ctx context.Context, db int, key string) int64 {
	return do(ctx, s, "hlen", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.HLen(ctx, key).Result()
	})
}

// HDel removes fields and returns how many existed.
func (s *Service) HDel(ctx context.Context, db int, key string, fields ...string) int64 {
	return do(ctx, s, "hdel", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.HDel(ctx, key, fields...).Result()
	})
}

// HKeys returns the field names of the hash at key.
func (s *Service) HKeys(ctx context.Context, db int, key string) []string {
	return do(ctx, s, "hkeys", db, []string{key}, func(ctx context.Context, c *redis.Conn) ([]string, error) {
		return c.HKeys(ctx, key).Result()
	})
}

// HVals returns the values of the hash at key.
func (s *Service) HVals(ctx context.Context, db int, key string) []string {
	return do(ctx, s, "hvals", db, []string{key}, func(ctx context.Context, c *redis.Conn) ([]string, error) {
		return c.HVals(ctx, key).Result()
	})
}

// HGetAll returns the whole hash at key. It is never nil.
func (s *Service) HGetAll(ctx context.Context, db int, key string) map[string]string {
	m := do(ctx, s, "hgetall", db, []string{key}, func(ctx context.Context, c *redis.Conn) (map[string]string, error) {
		return c.HGetAll(ctx, key).Result()
	})
	if m == nil {
		return map[string]string{}
	}
	return m
}

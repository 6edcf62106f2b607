package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/redisgate/pkg/redis"
)

// Get returns the value at key and whether it exists.
func (s *Service) Get(ctx context.Context, db int, key string) (string, bool) {
	m := do(ctx, s, "get", db, []string{key}, func(ctx context.Context, c *redis.Conn) (maybe[string], error) {
		return optional(c.Get(ctx, key).Result())
	})
	return m.val, m.ok
}

// GetBytes is Get for binary values.
func (s *Service) GetBytes(ctx context.Context, db int, key string) ([]byte, bool) {
	m := do(ctx, s, "get", db, []string{key}, func(ctx context.Context, c *redis.Conn) (maybe[[]byte], error) {
		return optional(c.Get(ctx, key).Bytes())
	})
	return m.val, m.ok
}

// Set stores value at key without expiry.
func (s *Service) Set(ctx context.Context, db int, key, value string) bool {
	return do(ctx, s, "set", db, []string{key}, func(ctx context.Context, c *redis.Conn) (bool, error) {
		return status(c.Set(ctx, key, value, 0).Err())
	})
}

// SetBytes is Set for binary values.
func (s *Service) SetBytes(ctx context.Context, db int, key string, value []byte) bool {
	return do(ctx, s, "set", db, []string{key}, func(ctx context.Context, c *redis.Conn) (bool, error) {
		return status(c.Set(ctx, key, value, 0).Err())
	})
}

// SetEx stores value at key with a time to live in seconds.
func (s *Service) SetEx(ctx context.Context, db int, key, value string, seconds int64) bool {
	if seconds <= 0 {
		return fail[bool](ctx, s, "setex", fmt.Errorf("%w: expiry %d must be positive", redis.ErrArgumentOutOfRange, seconds))
	}
	return do(ctx, s, "setex", db, []string{key}, func(ctx context.Context, c *redis.Conn) (bool, error) {
		return status(c.SetEx(ctx, key, value, seconds2duration(seconds)).Err())
	})
}

// SetNX stores value only if key does not exist and reports whether it did.
func (s *Service) SetNX(ctx context.Context, db int, key, value string) bool {
	return do(ctx, s, "setnx", db, []string{key}, func(ctx context.Context, c *redis.Conn) (bool, error) {
		return c.SetNX(ctx, key, value, 0).Result()
	})
}

// Del removes keys and returns how many existed. On a sharded pool with
// the merge policy the keys may span shards.
func (s *Service) Del(ctx context.Context, db int, keys ...string) int64 {
	if len(keys) == 0 {
		return fail[int64](ctx, s, "del", errNoKeys)
	}
	if part, merge := s.merging(); merge {
		return record(ctx, s, "del", func() (int64, error) {
			return mergedDel(ctx, s, part, db, keys)
		})
	}
	return do(ctx, s, "del", db, keys, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.Del(ctx, keys...).Result()
	})
}

// Append appends value to key and returns the new length.
func (s *Service) Append(ctx context.Context, db int, key, value string) int64 {
	return do(ctx, s, "append", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.Append(ctx, key, value).Result()
	})
}

// Exists reports whether key exists.
func (s *Service) Exists(ctx context.Context, db int, key string) bool {
	return do(ctx, s, "exists", db, []string{key}, func(ctx context.Context, c *redis.Conn) (bool, error) {
		n, err := c.Exists(ctx, key).Result()
		return n > 0, err
	})
}

// Expire sets a time to live in seconds and reports whether key exists.
func (s *Service) Expire(ctx context.Context, db int, key string, seconds int64) bool {
	return do(ctx, s, "expire", db, []string{key}, func(ctx context.Context, c *redis.Conn) (bool, error) {
		return c.Expire(ctx, key, seconds2duration(seconds)).Result()
	})
}

// TTL returns the remaining time to live of key in seconds,
// -2 if key does not exist and -1 if it has no expiry.
func (s *Service) TTL(ctx context.Context, db int, key string) int64 {
	return do(ctx, s, "ttl", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		d, err := c.TTL(ctx, key).Result()
		if err != nil {
			return 0, err
		}
		if d < 0 {
			return int64(d), nil
		}
		return int64(d / time.Second), nil
	})
}

// Persist removes the expiry of key and reports whether one was removed.
func (s *Service) Persist(ctx context.Context, db int, key string) bool {
	return do(ctx, s, "persist", db, []string{key}, func(ctx context.Context, c *redis.Conn) (bool, error) {
		return c.Persist(ctx, key).Result()
	})
}

// MGet returns the values of keys in order; missing keys are nil.
// On a sharded pool with the merge policy the keys may span shards.
func (s *Service) MGet(ctx context.Context, db int, keys ...string) []*string {
	if len(keys) == 0 {
		return fail[[]*string](ctx, s, "mget", errNoKeys)
	}
	if part, merge := s.merging(); merge {
		return record(ctx, s, "mget", func() ([]*string, error) {
			return mergedMGet(ctx, s, part, db, keys)
		})
	}
	return do(ctx, s, "mget", db, keys, func(ctx context.Context, c *redis.Conn) ([]*string, error) {
		vals, err := c.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, err
		}
		return stringPtrs(vals), nil
	})
}

// MSet stores key/value pairs given as k1, v1, k2, v2...
func (s *Service) MSet(ctx context.Context, db int, pairs ...string) bool {
	keys, err := pairKeys(pairs)
	if err != nil {
		return fail[bool](ctx, s, "mset", err)
	}
	return do(ctx, s, "mset", db, keys, func(ctx context.Context, c *redis.Conn) (bool, error) {
		return status(c.MSet(ctx, anys(pairs)...).Err())
	})
}

// MSetNX stores key/value pairs only if none of the keys exist.
func (s *Service) MSetNX(ctx context.Context, db int, pairs ...string) bool {
	keys, err := pairKeys(pairs)
	if err != nil {
		return fail[bool](ctx, s, "msetnx", err)
	}
	return do(ctx, s, "msetnx", db, keys, func(ctx context.Context, c *redis.Conn) (bool, error) {
		return c.MSetNX(ctx, anys(pairs)...).Result()
	})
}

// GetSet stores value and returns the previous one, if any.
func (s *Service) GetSet(ctx context.Context, db int, key, value string) (string, bool) {
	m := do(ctx, s, "getset", db, []string{key}, func(ctx context.Context, c *redis.Conn) (maybe[string], error) {
		return optional(c.GetSet(ctx, key, value).Result())
	})
	return m.val, m.ok
}

// GetRange returns the substring of the value between start and end, inclusive.
func (s *Service) GetRange(ctx context.Context, db int, key string, start, end int64) string {
	return do(ctx, s, "getrange", db, []string{key}, func(ctx context.Context, c *redis.Conn) (string, error) {
		return c.GetRange(ctx, key, start, end).Result()
	})
}

// SetRange overwrites part of the value starting at offset and returns the new length.
func (s *Service) SetRange(ctx context.Context, db int, key string, offset int64, value string) int64 {
	return do(ctx, s, "setrange", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.SetRange(ctx, key, offset, value).Result()
	})
}

// Incr increments the integer at key by one.
func (s *Service) Incr(ctx context.Context, db int, key string) int64 {
	return do(ctx, s, "incr", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.Incr(ctx, key).Result()
	})
}

// IncrBy increments the integer at key by n.
func (s *Service) IncrBy(ctx context.Context, db int, key string, n int64) int64 {
	return do(ctx, s, "incrby", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.IncrBy(ctx, key, n).Result()
	})
}

// Decr decrements the integer at key by one.
func (s *Service) Decr(ctx context.Context, db int, key string) int64 {
	return do(ctx, s, "decr", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.Decr(ctx, key).Result()
	})
}

// DecrBy decrements the integer at key by n.
func (s *Service) DecrBy(ctx context.Context, db int, key string, n int64) int64 {
	return do(ctx, s, "decrby", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.DecrBy(ctx, key, n).Result()
	})
}

// StrLen returns the length of the value at key.
func (s *Service) StrLen(ctx context.Context, db int, key string) int64 {
	return do(ctx, s, "strlen", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.StrLen(ctx, key).Result()
	})
}

package kv

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/redisgate/pkg/redis"
)

// SortOptions mirror the SORT modifiers. A nil *SortOptions sorts
// numerically ascending.
type SortOptions struct {
	By     string
	Offset int64
	Count  int64
	Get    []string
	Alpha  bool
	Desc   bool
}

func (o *SortOptions) sort() *goredis.Sort {
	if o == nil {
		return &goredis.Sort{}
	}
	order := "ASC"
	if o.Desc {
		order = "DESC"
	}
	return &goredis.Sort{
		By:     o.By,
		Offset: o.Offset,
		Count:  o.Count,
		Get:    o.Get,
		Order:  order,
		Alpha:  o.Alpha,
	}
}

// LPush prepends values to the list at key and returns its new length.
func (s *Service) LPush(ctx context.Context, db int, key string, values ...string) int64 {
	return do(ctx, s, "lpush", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.LPush(ctx, key, anys(values)...).Result()
	})
}

// RPush appends values to the list at key and returns its new length.
func (s *Service) RPush(ctx context.Context, db int, key string, values ...string) int64 {
	return do(ctx, s, "rpush", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.RPush(ctx, key, anys(values)...).Result()
	})
}

// LSet replaces the element at index.
func (s *Service) LSet(ctx context.Context, db int, key string, index int64, value string) bool {
	return do(ctx, s, "lset", db, []string{key}, func(ctx context.Context, c *redis.Conn) (bool, error) {
		return status(c.LSet(ctx, key, index, value).Err())
	})
}

// LRem removes count occurrences of value and returns how many were removed.
func (s *Service) LRem(ctx context.Context, db int, key string, count int64, value string) int64 {
	return do(ctx, s, "lrem", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.LRem(ctx, key, count, value).Result()
	})
}

// LTrim keeps only the elements between start and stop, inclusive.
func (s *Service) LTrim(ctx context.Context, db int, key string, start, stop int64) bool {
	return do(ctx, s, "ltrim", db, []string{key}, func(ctx context.Context, c *redis.Conn) (bool, error) {
		return status(c.LTrim(ctx, key, start, stop).Err())
	})
}

// LPop removes and returns the first element.
func (s *Service) LPop(ctx context.Context, db int, key string) (string, bool) {
	m := do(ctx, s, "lpop", db, []string{key}, func(ctx context.Context, c *redis.Conn) (maybe[string], error) {
		return optional(c.LPop(ctx, key).Result())
	})
	return m.val, m.ok
}

// RPop removes and returns the last element.
func (s *Service) RPop(ctx context.Context, db int, key string) (string, bool) {
	m := do(ctx, s, "rpop", db, []string{key}, func(ctx context.Context, c *redis.Conn) (maybe[string], error) {
		return optional(c.RPop(ctx, key).Result())
	})
	return m.val, m.ok
}

// RPopLPush moves the last element of src to the head of dst and returns it.
func (s *Service) RPopLPush(ctx context.Context, db int, src, dst string) (string, bool) {
	m := do(ctx, s, "rpoplpush", db, []string{src, dst}, func(ctx context.Context, c *redis.Conn) (maybe[string], error) {
		return optional(c.RPopLPush(ctx, src, dst).Result())
	})
	return m.val, m.ok
}

// LIndex returns the element at index.
func (s *Service) LIndex(ctx context.Context, db int, key string, index int64) (string, bool) {
	m := do(ctx, s, "lindex", db, []string{key}, func(ctx context.Context, c *redis.Conn) (maybe[string], error) {
		return optional(c.LIndex(ctx, key, index).Result())
	})
	return m.val, m.ok
}

// LLen returns the length of the list at key.
func (s *Service) LLen(ctx context.Context, db int, key string) int64 {
	return do(ctx, s, "llen", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.LLen(ctx, key).Result()
	})
}

// LRange returns the elements between start and stop, inclusive.
func (s *Service) LRange(ctx context.Context, db int, key string, start, stop int64) []string {
	return do(ctx, s, "lrange", db, []string{key}, func(ctx context.Context, c *redis.Conn) ([]string, error) {
		return c.LRange(ctx, key, start, stop).Result()
	})
}

// Sort returns the sorted elements of the list, set or sorted set at key.
func (s *Service) Sort(ctx context.Context, db int, key string, opts *SortOptions) []string {
	return do(ctx, s, "sort", db, []string{key}, func(ctx context.Context, c *redis.Conn) ([]string, error) {
		return c.Sort(ctx, key, opts.sort()).Result()
	})
}

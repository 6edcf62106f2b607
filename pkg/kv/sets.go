package kv

import (
	"context"

	"github.com/dmitrymomot/redisgate/pkg/redis"
)

// SAdd adds members to the set at key and returns how many were new.
func (s *Service) SAdd(ctx context.Context, db int, key string, members ...string) int64 {
	return do(ctx, s, "sadd", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.SAdd(ctx, key, anys(members)...).Result()
	})
}

// SRem removes members and returns how many existed.
func (s *Service) SRem(ctx context.Context, db int, key string, members ...string) int64 {
	return do(ctx, s, "srem", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.SRem(ctx, key, anys(members)...).Result()
	})
}

// SPop removes and returns a random member.
func (s *Service) SPop(ctx context.Context, db int, key string) (string, bool) {
	m := do(ctx, s, "spop", db, []string{key}, func(ctx context.Context, c *redis.Conn) (maybe[string], error) {
		return optional(c.SPop(ctx, key).Result())
	})
	return m.val, m.ok
}

// SDiff returns the members of the first set missing from the others.
func (s *Service) SDiff(ctx context.Context, db int, keys ...string) []string {
	return do(ctx, s, "sdiff", db, keys, func(ctx context.Context, c *redis.Conn) ([]string, error) {
		return c.SDiff(ctx, keys...).Result()
	})
}

// SDiffStore stores SDiff of keys at dst and returns its size.
func (s *Service) SDiffStore(ctx context.Context, db int, dst string, keys ...string) int64 {
	return do(ctx, s, "sdiffstore", db, append([]string{dst}, keys...), func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.SDiffStore(ctx, dst, keys...).Result()
	})
}

// SInter returns the members present in every set.
func (s *Service) SInter(ctx context.Context, db int, keys ...string) []string {
	return do(ctx, s, "sinter", db, keys, func(ctx context.Context, c *redis.Conn) ([]string, error) {
		return c.SInter(ctx, keys...).Result()
	})
}

// SInterStore stores SInter of keys at dst and returns its size.
func (s *Service) SInterStore(ctx context.Context, db int, dst string, keys ...string) int64 {
	return do(ctx, s, "sinterstore", db, append([]string{dst}, keys...), func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.SInterStore(ctx, dst, keys...).Result()
	})
}

// SUnion returns the members present in any set.
func (s *Service) SUnion(ctx context.Context, db int, keys ...string) []string {
	return do(ctx, s, "sunion", db, keys, func(ctx context.Context, c *redis.Conn) ([]string, error) {
		return c.SUnion(ctx, keys...).Result()
	})
}

// SUnionStore stores SUnion of keys at dst and returns its size.
func (s *Service) SUnionStore(ctx context.Context, db int, dst string, keys ...string) int64 {
	return do(ctx, s, "sunionstore", db, append([]string{dst}, keys...), func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.SUnionStore(ctx, dst, keys...).Result()
	})
}

// SMove moves member from src to dst and reports whether it was moved.
func (s *Service) SMove(ctx context.Context, db int, src, dst, member string) bool {
	return do(ctx, s, "smove", db, []string{src, dst}, func(ctx context.Context, c *redis.Conn) (bool, error) {
		return c.SMove(ctx, src, dst, member).Result()
	})
}

// SCard returns the size of the set at key.
func (s *Service) SCard(ctx context.Context, db int, key string) int64 {
	return do(ctx, s, "scard", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.SCard(ctx, key).Result()
	})
}

// SIsMember reports whether member belongs to the set at key.
func (s *Service) SIsMember(ctx context.Context, db int, key, member string) bool {
	return do(ctx, s, "sismember", db, []string{key}, func(ctx context.Context, c *redis.Conn) (bool, error) {
		return c.SIsMember(ctx, key, member).Result()
	})
}

// SRandMember returns a random member without removing it.
func (s *Service) SRandMember(ctx context.Context, db int, key string) (string, bool) {
	m := do(ctx, s, "srandmember", db, []string{key}, func(ctx context.Context, c *redis.Conn) (maybe[string], error) {
		return optional(c.SRandMember(ctx, key).Result())
	})
	return m.val, m.ok
}

// SMembers returns every member of the set at key.
func (s *Service) SMembers(ctx context.Context, db int, key string) []string {
	return do(ctx, s, "smembers", db, []string{key}, func(ctx context.Context, c *redis.Conn) ([]string, error) {
		return c.SMembers(ctx, key).Result()
	})
}

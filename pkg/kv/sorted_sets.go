package kv

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/redisgate/pkg/redis"
)

// ScoredMember is a sorted-set member with its score.
type ScoredMember struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// ZAdd adds member with score and returns 1 if it is new.
func (s *Service) ZAdd(ctx context.Context, db int, key string, score float64, member string) int64 {
	return do(ctx, s, "zadd", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.ZAdd(ctx, key, goredis.Z{Score: score, Member: member}).Result()
	})
}

// ZRange returns members by ascending rank between start and stop.
func (s *Service) ZRange(ctx context.Context, db int, key string, start, stop int64) []string {
	return do(ctx, s, "zrange", db, []string{key}, func(ctx context.Context, c *redis.Conn) ([]string, error) {
		return c.ZRange(ctx, key, start, stop).Result()
	})
}

// ZRevRange returns members by descending rank between start and stop.
func (s *Service) ZRevRange(ctx context.Context, db int, key string, start, stop int64) []string {
	return do(ctx, s, "zrevrange", db, []string{key}, func(ctx context.Context, c *redis.Conn) ([]string, error) {
		return c.ZRevRange(ctx, key, start, stop).Result()
	})
}

// ZRevRangeWithScores is ZRevRange including scores.
func (s *Service) ZRevRangeWithScores(ctx context.Context, db int, key string, start, stop int64) []ScoredMember {
	return do(ctx, s, "zrevrange_withscores", db, []string{key}, func(ctx context.Context, c *redis.Conn) ([]ScoredMember, error) {
		zs, err := c.ZRevRangeWithScores(ctx, key, start, stop).Result()
		if err != nil {
			return nil, err
		}
		out := make([]ScoredMember, len(zs))
		for i, z := range zs {
			out[i] = ScoredMember{Member: fmt.Sprint(z.Member), Score: z.Score}
		}
		return out, nil
	})
}

// ZRangeByScore returns members with min <= score <= max in ascending order.
// Bounds accept the server syntax: "-inf", "+inf" and "(" for exclusive.
func (s *Service) ZRangeByScore(ctx context.Context, db int, key, min, max string) []string {
	return do(ctx, s, "zrangebyscore", db, []string{key}, func(ctx context.Context, c *redis.Conn) ([]string, error) {
		return c.ZRangeByScore(ctx, key, &goredis.ZRangeBy{Min: min, Max: max}).Result()
	})
}

// ZRevRangeByScore returns members with max >= score >= min in descending order.
func (s *Service) ZRevRangeByScore(ctx context.Context, db int, key, max, min string) []string {
	return do(ctx, s, "zrevrangebyscore", db, []string{key}, func(ctx context.Context, c *redis.Conn) ([]string, error) {
		return c.ZRevRangeByScore(ctx, key, &goredis.ZRangeBy{Min: min, Max: max}).Result()
	})
}

// ZCount returns the number of members with min <= score <= max.
func (s *Service) ZCount(ctx context.Context, db int, key, min, max string) int64 {
	return do(ctx, s, "zcount", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.ZCount(ctx, key, min, max).Result()
	})
}

// ZRem removes members and returns how many existed.
func (s *Service) ZRem(ctx context.Context, db int, key string, members ...string) int64 {
	return do(ctx, s, "zrem", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.ZRem(ctx, key, anys(members)...).Result()
	})
}

// ZIncrBy adds increment to the score of member and returns the new score.
func (s *Service) ZIncrBy(ctx context.Context, db int, key string, increment float64, member string) float64 {
	return do(ctx, s, "zincrby", db, []string{key}, func(ctx context.Context, c *redis.Conn) (float64, error) {
		return c.ZIncrBy(ctx, key, increment, member).Result()
	})
}

// ZRank returns the ascending rank of member and whether it exists.
func (s *Service) ZRank(ctx context.Context, db int, key, member string) (int64, bool) {
	m := do(ctx, s, "zrank", db, []string{key}, func(ctx context.Context, c *redis.Conn) (maybe[int64], error) {
		return optional(c.ZRank(ctx, key, member).Result())
	})
	return m.val, m.ok
}

// ZRevRank returns the descending rank of member and whether it exists.
func (s *Service) ZRevRank(ctx context.Context, db int, key, member string) (int64, bool) {
	m := do(ctx, s, "zrevrank", db, []string{key}, func(ctx context.Context, c *redis.Conn) (maybe[int64], error) {
		return optional(c.ZRevRank(ctx, key, member).Result())
	})
	return m.val, m.ok
}

// ZCard returns the size of the sorted set at key.
func (s *Service) ZCard(ctx context.Context, db int, key string) int64 {
	return do(ctx, s, "zcard", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.ZCard(ctx, key).Result()
	})
}

// ZScore returns the score of member and whether it exists.
func (s *Service) ZScore(ctx context.Context, db int, key, member string) (float64, bool) {
	m := do(ctx, s, "zscore", db, []string{key}, func(ctx context.Context, c *redis.Conn) (maybe[float64], error) {
		return optional(c.ZScore(ctx, key, member).Result())
	})
	return m.val, m.ok
}

// ZRemRangeByRank removes members ranked between start and stop.
func (s *Service) ZRemRangeByRank(ctx context.Context, db int, key string, start, stop int64) int64 {
	return do(ctx, s, "zremrangebyrank", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.ZRemRangeByRank(ctx, key, start, stop).Result()
	})
}

// ZRemRangeByScore removes members with min <= score <= max.
func (s *Service) ZRemRangeByScore(ctx context.Context, db int, key, min, max string) int64 {
	return do(ctx, s, "zremrangebyscore", db, []string{key}, func(ctx context.Context, c *redis.Conn) (int64, error) {
		return c.ZRemRangeByScore(ctx, key, min, max).Result()
	})
}

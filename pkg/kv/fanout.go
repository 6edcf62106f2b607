package kv

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/redisgate/pkg/pool"
	"github.com/dmitrymomot/redisgate/pkg/redis"
)

// merging reports whether multi-key reads and deletes may span shards.
func (s *Service) merging() (pool.Partitioned, bool) {
	part, ok := s.pool.(pool.Partitioned)
	if !ok || part.Policy() != pool.MultiKeyMerge {
		return nil, false
	}
	return part, true
}

// onEveryShard runs cmd on every shard concurrently and returns the
// results in shard order.
func onEveryShard[T any](ctx context.Context, s *Service, part pool.Partitioned, db int, cmd Command[T]) ([]T, error) {
	if err := s.checkDB(db); err != nil {
		return nil, err
	}

	shards := part.Shards()
	results := make([]T, len(shards))

	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		g.Go(func() error {
			res, err := borrow(gctx, shard, db, nil, cmd)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// byShard groups key positions by owning shard.
func byShard(part pool.Partitioned, keys []string) map[int][]int {
	groups := make(map[int][]int)
	for i, k := range keys {
		shard := part.Locate(k)
		groups[shard] = append(groups[shard], i)
	}
	return groups
}

// onOwningShards runs cmd once per shard owning some of keys, passing that
// shard's subset, and calls collect with the subset positions and result.
func onOwningShards[T any](
	ctx context.Context,
	s *Service,
	part pool.Partitioned,
	db int,
	keys []string,
	cmd func(keys []string) Command[T],
	collect func(positions []int, res T),
) error {
	if err := s.checkDB(db); err != nil {
		return err
	}

	shards := part.Shards()
	groups := byShard(part, keys)
	order := make([]int, 0, len(groups))
	for shard := range groups {
		order = append(order, shard)
	}
	slices.Sort(order)

	out := make([]T, len(order))
	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range order {
		positions := groups[shard]
		subset := make([]string, len(positions))
		for j, pos := range positions {
			subset[j] = keys[pos]
		}
		g.Go(func() error {
			res, err := borrow(gctx, shards[shard], db, subset, cmd(subset))
			out[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, shard := range order {
		collect(groups[shard], out[i])
	}
	return nil
}

func mergedMGet(ctx context.Context, s *Service, part pool.Partitioned, db int, keys []string) ([]*string, error) {
	merged := make([]*string, len(keys))
	err := onOwningShards(ctx, s, part, db, keys,
		func(subset []string) Command[[]*string] {
			return func(ctx context.Context, c *redis.Conn) ([]*string, error) {
				vals, err := c.MGet(ctx, subset...).Result()
				if err != nil {
					return nil, err
				}
				return stringPtrs(vals), nil
			}
		},
		func(positions []int, vals []*string) {
			for j, pos := range positions {
				merged[pos] = vals[j]
			}
		},
	)
	if err != nil {
		return nil, err
	}
	return merged, nil
}

func mergedDel(ctx context.Context, s *Service, part pool.Partitioned, db int, keys []string) (int64, error) {
	var total int64
	err := onOwningShards(ctx, s, part, db, keys,
		func(subset []string) Command[int64] {
			return func(ctx context.Context, c *redis.Conn) (int64, error) {
				return c.Del(ctx, subset...).Result()
			}
		},
		func(_ []int, n int64) {
			total += n
		},
	)
	if err != nil {
		return 0, err
	}
	return total, nil
}

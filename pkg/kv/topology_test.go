package kv_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/redisgate/pkg/kv"
	"github.com/dmitrymomot/redisgate/pkg/pool"
	"github.com/dmitrymomot/redisgate/pkg/redis"
)

func newShardedService(t *testing.T, n int, policy pool.MultiKeyPolicy, opts ...kv.Option) (*kv.Service, *pool.Sharded, []*miniredis.Miniredis) {
	t.Helper()

	servers := make([]*miniredis.Miniredis, n)
	eps := make([]redis.Endpoint, n)
	for i := range n {
		servers[i], eps[i] = newServer(t)
	}

	p, err := pool.NewSharded(context.Background(), eps, pool.DefaultConfig(), pool.WithMultiKeyPolicy(policy))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })

	return kv.New(p, opts...), p, servers
}

// splitKeys returns two keys owned by different shards.
func splitKeys(t *testing.T, p *pool.Sharded) (string, string) {
	t.Helper()

	for i := 2; i < 1000; i++ {
		k := fmt.Sprintf("user:%d", i)
		if p.Locate(k) != p.Locate("user:1") {
			return "user:1", k
		}
	}
	t.Fatal("no keys on different shards")
	return "", ""
}

func commandCount(servers []*miniredis.Miniredis) int {
	n := 0
	for _, s := range servers {
		n += s.CommandCount()
	}
	return n
}

func TestScenario_ShardedStrict(t *testing.T) {
	t.Parallel()

	errs := newErrorLog()
	svc, p, servers := newShardedService(t, 3, pool.MultiKeyStrict, kv.WithErrorHandler(errs.handle))
	ctx := context.Background()

	k1, k2 := splitKeys(t, p)

	require.True(t, svc.Set(ctx, 0, k1, "A"))
	require.True(t, svc.Set(ctx, 0, k2, "B"))

	v, ok := svc.Get(ctx, 0, k1)
	require.True(t, ok)
	require.Equal(t, "A", v)
	v, ok = svc.Get(ctx, 0, k2)
	require.True(t, ok)
	require.Equal(t, "B", v)

	require.True(t, servers[p.Locate(k1)].Exists(k1))
	require.True(t, servers[p.Locate(k2)].Exists(k2))

	before := commandCount(servers)

	require.Nil(t, svc.MGet(ctx, 0, k1, k2))
	require.ErrorIs(t, errs.last("mget"), pool.ErrCrossShard)

	require.Equal(t, int64(0), svc.SInterStore(ctx, 0, k1, k2))
	require.ErrorIs(t, errs.last("sinterstore"), pool.ErrCrossShard)

	_, ok = svc.RPopLPush(ctx, 0, k1, k2)
	require.False(t, ok)
	require.ErrorIs(t, errs.last("rpoplpush"), pool.ErrCrossShard)

	require.Equal(t, before, commandCount(servers), "cross-shard commands must not reach any server")

	tagged := svc.MGet(ctx, 0, "{user:1}:a", "{user:1}:b")
	require.Len(t, tagged, 2, "hash-tagged keys share a shard")
}

func TestScenario_ShardedRejectsDatabases(t *testing.T) {
	t.Parallel()

	errs := newErrorLog()
	svc, _, servers := newShardedService(t, 3, pool.MultiKeyStrict, kv.WithErrorHandler(errs.handle))
	ctx := context.Background()

	before := commandCount(servers)
	require.False(t, svc.Set(ctx, 3, "k", "v"))
	require.ErrorIs(t, errs.last("set"), redis.ErrArgumentOutOfRange)
	require.Equal(t, before, commandCount(servers))

	_, err := kv.Execute(ctx, svc, 1, []string{"k"}, func(ctx context.Context, c *redis.Conn) (string, error) {
		return c.Get(ctx, "k").Result()
	})
	require.ErrorIs(t, err, redis.ErrArgumentOutOfRange)
}

func TestSharded_MergePolicy(t *testing.T) {
	t.Parallel()

	errs := newErrorLog()
	svc, p, _ := newShardedService(t, 3, pool.MultiKeyMerge, kv.WithErrorHandler(errs.handle))
	ctx := context.Background()

	k1, k2 := splitKeys(t, p)
	require.True(t, svc.Set(ctx, 0, k1, "A"))
	require.True(t, svc.Set(ctx, 0, k2, "B"))

	vals := svc.MGet(ctx, 0, k2, "missing", k1)
	require.Len(t, vals, 3)
	require.Equal(t, "B", *vals[0])
	require.Nil(t, vals[1])
	require.Equal(t, "A", *vals[2])

	require.Equal(t, int64(2), svc.Del(ctx, 0, k1, k2, "missing"))
	require.Equal(t, int64(0), svc.Del(ctx, 0, k1, k2))

	require.Equal(t, int64(0), svc.SUnionStore(ctx, 0, k1, k2), "atomic multi-key commands stay strict")
	require.ErrorIs(t, errs.last("sunionstore"), pool.ErrCrossShard)
}

func TestSharded_KeyspaceCommandsFanOut(t *testing.T) {
	t.Parallel()

	svc, p, servers := newShardedService(t, 3, pool.MultiKeyStrict)
	ctx := context.Background()

	written := make([]string, 0, 30)
	for i := range 30 {
		k := fmt.Sprintf("Time:%d", i)
		require.True(t, svc.SetEx(ctx, 0, k, "Hello", 600))
		written = append(written, k)
	}

	used := make(map[int]bool)
	for _, k := range written {
		used[p.Locate(k)] = true
	}
	require.Greater(t, len(used), 1, "keys should spread over several shards")

	require.ElementsMatch(t, written, svc.Keys(ctx, 0, "Time:*"))

	require.True(t, svc.FlushDB(ctx, 0))
	require.Empty(t, svc.Keys(ctx, 0, "*"))
	for _, s := range servers {
		require.Empty(t, s.Keys())
	}
}

// switchingArbiter reports one primary and announces switches pushed to it.
type switchingArbiter struct {
	primary  redis.Endpoint
	switches chan redis.Endpoint
}

func (a *switchingArbiter) Primary(context.Context) (redis.Endpoint, error) {
	return a.primary, nil
}

func (a *switchingArbiter) Watch(ctx context.Context, onSwitch func(redis.Endpoint)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ep := <-a.switches:
			onSwitch(ep)
		}
	}
}

func (a *switchingArbiter) Close() error { return nil }

func TestScenario_ArbiterFailover(t *testing.T) {
	t.Parallel()

	mr1, ep1 := newServer(t)
	mr2, ep2 := newServer(t)
	ctx := context.Background()

	a := &switchingArbiter{primary: ep1, switches: make(chan redis.Endpoint)}
	p, err := pool.NewArbitered(ctx, []pool.Arbiter{a}, pool.DefaultConfig())
	require.NoError(t, err)
	defer p.Close(ctx)

	svc := kv.New(p)

	require.True(t, svc.Set(ctx, 0, "k", "v"))
	got, err := mr1.Get("k")
	require.NoError(t, err)
	require.Equal(t, "v", got)

	// replication is simulated by seeding the new primary
	require.NoError(t, mr2.Set("k", "v"))

	a.switches <- ep2
	require.Eventually(t, func() bool {
		return p.Primary() == ep2
	}, time.Second, 5*time.Millisecond)

	v, ok := svc.Get(ctx, 0, "k")
	require.True(t, ok)
	require.Equal(t, "v", v)

	require.True(t, svc.Set(ctx, 0, "after", "failover"))
	require.True(t, mr2.Exists("after"))
	require.False(t, mr1.Exists("after"))
}

package pool_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/redisgate/pkg/pool"
	"github.com/dmitrymomot/redisgate/pkg/redis"
)

func newShards(t *testing.T, n int) ([]*miniredis.Miniredis, []redis.Endpoint) {
	t.Helper()

	servers := make([]*miniredis.Miniredis, n)
	eps := make([]redis.Endpoint, n)
	for i := range n {
		servers[i], eps[i] = newServer(t)
	}
	return servers, eps
}

func newSharded(t *testing.T, eps []redis.Endpoint, opts ...pool.Option) *pool.Sharded {
	t.Helper()

	p, err := pool.NewSharded(context.Background(), eps, pool.DefaultConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

// keysOnDifferentShards returns two keys the ring places apart.
func keysOnDifferentShards(t *testing.T, p *pool.Sharded) (string, string) {
	t.Helper()

	first := "user:0"
	for i := 1; i < 1000; i++ {
		k := fmt.Sprintf("user:%d", i)
		if p.Locate(k) != p.Locate(first) {
			return first, k
		}
	}
	t.Fatal("no keys on different shards")
	return "", ""
}

func TestSharded_Routing(t *testing.T) {
	t.Parallel()

	servers, eps := newShards(t, 3)
	p := newSharded(t, eps)
	ctx := context.Background()

	require.False(t, p.MultiDB())
	require.Len(t, p.Shards(), 3)
	require.Equal(t, pool.MultiKeyStrict, p.Policy())

	for i := range 20 {
		key := fmt.Sprintf("user:%d", i)
		shard := p.Locate(key)

		conn, err := p.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, eps[shard], conn.Endpoint())
		require.NoError(t, conn.Set(ctx, key, "v", 0).Err())
		p.Put(conn)

		require.True(t, servers[shard].Exists(key), "key %s should live on shard %d", key, shard)
	}

	require.Equal(t, 0, p.Stats().Out)
}

func TestSharded_Route(t *testing.T) {
	t.Parallel()

	servers, eps := newShards(t, 3)
	p := newSharded(t, eps)
	ctx := context.Background()

	t.Run("keys on different shards fail without a server call", func(t *testing.T) {
		k1, k2 := keysOnDifferentShards(t, p)

		var before int
		for _, s := range servers {
			before += s.CommandCount()
		}

		_, err := p.Get(ctx, k1, k2)
		require.ErrorIs(t, err, pool.ErrCrossShard)

		var after int
		for _, s := range servers {
			after += s.CommandCount()
		}
		require.Equal(t, before, after)
		require.Equal(t, 0, p.Stats().Out)
	})

	t.Run("hash tags pin keys to one shard", func(t *testing.T) {
		shard, err := p.Route("{user:1}:profile", "{user:1}:settings", "{user:1}")
		require.NoError(t, err)
		require.Equal(t, p.Locate("user:1"), shard)
	})

	t.Run("no keys is an argument error", func(t *testing.T) {
		_, err := p.Get(ctx)
		require.ErrorIs(t, err, redis.ErrArgumentOutOfRange)
	})
}

func TestSharded_Construction(t *testing.T) {
	t.Parallel()

	t.Run("duplicate endpoints are rejected", func(t *testing.T) {
		t.Parallel()

		_, ep := newServer(t)
		_, err := pool.NewSharded(context.Background(), []redis.Endpoint{ep, ep}, pool.DefaultConfig())
		require.ErrorIs(t, err, pool.ErrConfigInvalid)
	})

	t.Run("no endpoints are rejected", func(t *testing.T) {
		t.Parallel()

		_, err := pool.NewSharded(context.Background(), nil, pool.DefaultConfig())
		require.ErrorIs(t, err, pool.ErrConfigInvalid)
	})

	t.Run("merge policy is carried", func(t *testing.T) {
		t.Parallel()

		_, eps := newShards(t, 2)
		p := newSharded(t, eps, pool.WithMultiKeyPolicy(pool.MultiKeyMerge))
		require.Equal(t, pool.MultiKeyMerge, p.Policy())
	})
}

func TestParseMultiKeyPolicy(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in      string
		want    pool.MultiKeyPolicy
		wantErr bool
	}{
		{in: "", want: pool.MultiKeyStrict},
		{in: "strict", want: pool.MultiKeyStrict},
		{in: " MERGE ", want: pool.MultiKeyMerge},
		{in: "union", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()

			got, err := pool.ParseMultiKeyPolicy(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, pool.ErrConfigInvalid)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

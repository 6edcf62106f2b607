package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/redisgate/pkg/cache"
	"github.com/dmitrymomot/redisgate/pkg/kv"
	"github.com/dmitrymomot/redisgate/pkg/pool"
	"github.com/dmitrymomot/redisgate/pkg/redis"
)

type user struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func newService(t *testing.T) (*kv.Service, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	ep, err := redis.ParseAddr(mr.Addr(), "")
	require.NoError(t, err)

	p, err := pool.NewSingle(context.Background(), ep, pool.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })

	return kv.New(p), mr
}

func newCache[V any](t *testing.T, svc *kv.Service, namespace string, opts ...cache.RedisOption) *cache.Redis[V] {
	t.Helper()

	c, err := cache.NewRedis[V](svc, namespace, nil, opts...)
	require.NoError(t, err)
	return c
}

func TestNewRedis(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)

	for _, ns := range []string{"", "*", "users*", "a?b", "[x]"} {
		_, err := cache.NewRedis[string](svc, ns, nil)
		require.ErrorIs(t, err, cache.ErrInvalidNamespace, "namespace %q", ns)
	}

	c, err := cache.NewRedis[string](svc, "users", nil)
	require.NoError(t, err)
	require.Equal(t, "users", c.Namespace())
}

func TestRedis_GetSet(t *testing.T) {
	t.Parallel()

	svc, mr := newService(t)
	c := newCache[user](t, svc, "users")
	ctx := context.Background()

	t.Run("returns ErrNotFound for missing key", func(t *testing.T) {
		_, err := c.Get(ctx, "missing")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("stores JSON under the namespaced key", func(t *testing.T) {
		u := user{Name: "Alice", Age: 30}
		require.NoError(t, c.Set(ctx, "1", u, time.Minute))

		raw, err := mr.Get("users::1")
		require.NoError(t, err)
		require.JSONEq(t, `{"name":"Alice","age":30}`, raw)

		got, err := c.Get(ctx, "1")
		require.NoError(t, err)
		require.Equal(t, u, got)
	})

	t.Run("applies the caller TTL", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "ttl", user{Name: "Bob"}, 30*time.Second))
		require.Equal(t, 30*time.Second, mr.TTL("users::ttl"))

		mr.FastForward(31 * time.Second)
		_, err := c.Get(ctx, "ttl")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("zero or negative TTL never expires", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "zero", user{Name: "Z"}, 0))
		require.NoError(t, c.Set(ctx, "neg", user{Name: "N"}, -time.Second))
		require.Zero(t, mr.TTL("users::zero"))
		require.Zero(t, mr.TTL("users::neg"))
	})

	t.Run("unreadable payload is ErrUnmarshal", func(t *testing.T) {
		require.NoError(t, mr.Set("users::garbage", "{not json"))
		_, err := c.Get(ctx, "garbage")
		require.ErrorIs(t, err, cache.ErrUnmarshal)
	})
}

func TestRedis_Marshal(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	c := newCache[chan int](t, svc, "chans")

	err := c.Set(context.Background(), "k", make(chan int), time.Minute)
	require.ErrorIs(t, err, cache.ErrMarshal)
}

func TestRedis_DeleteHas(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	c := newCache[string](t, svc, "sessions")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", time.Minute))

	has, err := c.Has(ctx, "a")
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, c.Delete(ctx, "a"))
	require.NoError(t, c.Delete(ctx, "a"), "deleting a missing key is not an error")

	has, err = c.Has(ctx, "a")
	require.NoError(t, err)
	require.False(t, has)
}

func TestRedis_Clear(t *testing.T) {
	t.Parallel()

	svc, mr := newService(t)
	users := newCache[string](t, svc, "users")
	orders := newCache[string](t, svc, "orders")
	ctx := context.Background()

	for _, k := range []string{"1", "2", "3"} {
		require.NoError(t, users.Set(ctx, k, "u"+k, 0))
	}
	require.NoError(t, orders.Set(ctx, "1", "o1", 0))
	require.NoError(t, mr.Set("users:plain", "untouched"))

	require.NoError(t, users.Clear(ctx))

	for _, k := range []string{"1", "2", "3"} {
		_, err := users.Get(ctx, k)
		require.ErrorIs(t, err, cache.ErrNotFound)
	}
	v, err := orders.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "o1", v)
	require.True(t, mr.Exists("users:plain"))

	require.NoError(t, users.Clear(ctx), "clearing an empty namespace is not an error")
}

func TestRedis_WithDB(t *testing.T) {
	t.Parallel()

	svc, mr := newService(t)
	c := newCache[string](t, svc, "ns", cache.WithDB(4))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	require.True(t, mr.DB(4).Exists("ns::k"))
	require.False(t, mr.DB(0).Exists("ns::k"))

	n, err := cache.Evict(ctx, svc, 4, "ns")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestEvict(t *testing.T) {
	t.Parallel()

	t.Run("sharded pool evicts on every shard", func(t *testing.T) {
		t.Parallel()

		servers := make([]*miniredis.Miniredis, 3)
		eps := make([]redis.Endpoint, 3)
		for i := range servers {
			servers[i] = miniredis.RunT(t)
			ep, err := redis.ParseAddr(servers[i].Addr(), "")
			require.NoError(t, err)
			eps[i] = ep
		}

		p, err := pool.NewSharded(context.Background(), eps, pool.DefaultConfig())
		require.NoError(t, err)
		t.Cleanup(func() { _ = p.Close(context.Background()) })

		svc := kv.New(p)
		c := newCache[int](t, svc, "counters")
		ctx := context.Background()

		for i := range 20 {
			require.NoError(t, c.Set(ctx, string(rune('a'+i)), i, 0))
		}

		n, err := cache.Evict(ctx, svc, 0, "counters")
		require.NoError(t, err)
		require.Equal(t, int64(20), n)
		for _, s := range servers {
			require.Empty(t, s.Keys())
		}
	})

	t.Run("rejects glob namespaces", func(t *testing.T) {
		t.Parallel()

		svc, _ := newService(t)
		_, err := cache.Evict(context.Background(), svc, 0, "*")
		require.ErrorIs(t, err, cache.ErrInvalidNamespace)
	})

	t.Run("surfaces connection failures", func(t *testing.T) {
		t.Parallel()

		svc, mr := newService(t)
		mr.Close()

		_, err := cache.Evict(context.Background(), svc, 0, "users")
		require.ErrorIs(t, err, redis.ErrConnectionBroken)
	})
}

func TestGetOrSet(t *testing.T) {
	t.Parallel()

	t.Run("returns cached value on hit", func(t *testing.T) {
		t.Parallel()

		svc, _ := newService(t)
		c := newCache[string](t, svc, "hit")
		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "key", "cached", time.Minute))

		val, err := cache.GetOrSet(ctx, c, "key", func(_ context.Context) (string, time.Duration, error) {
			t.Fatal("fn should not be called on cache hit")
			return "", 0, nil
		})
		require.NoError(t, err)
		require.Equal(t, "cached", val)
	})

	t.Run("calls fn on miss and caches result", func(t *testing.T) {
		t.Parallel()

		svc, mr := newService(t)
		c := newCache[string](t, svc, "miss")
		ctx := context.Background()

		val, err := cache.GetOrSet(ctx, c, "key", func(_ context.Context) (string, time.Duration, error) {
			return "computed", time.Minute, nil
		})
		require.NoError(t, err)
		require.Equal(t, "computed", val)

		cached, err := c.Get(ctx, "key")
		require.NoError(t, err)
		require.Equal(t, "computed", cached)
		require.Equal(t, time.Minute, mr.TTL("miss::key"))
	})

	t.Run("returns error from fn", func(t *testing.T) {
		t.Parallel()

		svc, _ := newService(t)
		c := newCache[string](t, svc, "fail")
		ctx := context.Background()
		testErr := errors.New("compute failed")

		_, err := cache.GetOrSet(ctx, c, "key", func(_ context.Context) (string, time.Duration, error) {
			return "", 0, testErr
		})
		require.ErrorIs(t, err, testErr)

		_, err = c.Get(ctx, "key")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("computes when the cache is unavailable", func(t *testing.T) {
		t.Parallel()

		svc, mr := newService(t)
		c := newCache[string](t, svc, "down")
		mr.Close()

		val, err := cache.GetOrSet(context.Background(), c, "key", func(_ context.Context) (string, time.Duration, error) {
			return "fresh", time.Minute, nil
		})
		require.NoError(t, err)
		require.Equal(t, "fresh", val)
	})

	t.Run("overwrites an entry that no longer decodes", func(t *testing.T) {
		t.Parallel()

		svc, mr := newService(t)
		c := newCache[user](t, svc, "stale")
		require.NoError(t, mr.Set("stale::1", "v1-format"))

		val, err := cache.GetOrSet(context.Background(), c, "1", func(_ context.Context) (user, time.Duration, error) {
			return user{Name: "Ann"}, 0, nil
		})
		require.NoError(t, err)
		require.Equal(t, "Ann", val.Name)

		raw, err := mr.Get("stale::1")
		require.NoError(t, err)
		require.JSONEq(t, `{"name":"Ann","age":0}`, raw)
	})

	t.Run("deduplicates concurrent calls", func(t *testing.T) {
		t.Parallel()

		svc, _ := newService(t)
		c := newCache[int](t, svc, "dedup")
		ctx := context.Background()
		var calls atomic.Int64
		var wg sync.WaitGroup

		for range 10 {
			wg.Go(func() {
				val, err := cache.GetOrSet(ctx, c, "dedup", func(_ context.Context) (int, time.Duration, error) {
					calls.Add(1)
					time.Sleep(10 * time.Millisecond)
					return 42, time.Minute, nil
				})
				require.NoError(t, err)
				require.Equal(t, 42, val)
			})
		}

		wg.Wait()

		require.LessOrEqual(t, calls.Load(), int64(2),
			"fn should be called at most twice due to singleflight dedup")
	})
}

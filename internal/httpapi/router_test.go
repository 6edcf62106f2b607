package httpapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/redisgate/internal/httpapi"
	"github.com/dmitrymomot/redisgate/pkg/kv"
	"github.com/dmitrymomot/redisgate/pkg/pool"
	"github.com/dmitrymomot/redisgate/pkg/redis"
)

// tick returns a clock advancing one millisecond per call.
func tick() func() time.Time {
	now := time.UnixMilli(1_700_000_000_000)
	return func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}
}

func newSingle(t *testing.T) (*kv.Service, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	ep, err := redis.ParseAddr(mr.Addr(), "")
	require.NoError(t, err)

	p, err := pool.NewSingle(context.Background(), ep, pool.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })

	return kv.New(p), mr
}

func newSharded(t *testing.T, policy pool.MultiKeyPolicy) (*kv.Service, []*miniredis.Miniredis) {
	t.Helper()

	servers := make([]*miniredis.Miniredis, 3)
	eps := make([]redis.Endpoint, 3)
	for i := range servers {
		servers[i] = miniredis.RunT(t)
		ep, err := redis.ParseAddr(servers[i].Addr(), "")
		require.NoError(t, err)
		eps[i] = ep
	}

	p, err := pool.NewSharded(context.Background(), eps, pool.DefaultConfig(), pool.WithMultiKeyPolicy(policy))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })

	return kv.New(p), servers
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func values(t *testing.T, rec *httptest.ResponseRecorder) []*string {
	t.Helper()

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out []*string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRedisSetGet(t *testing.T) {
	t.Parallel()

	svc, mr := newSingle(t)
	h := httpapi.NewRouter(svc, httpapi.WithClock(tick()))

	t.Run("empty database", func(t *testing.T) {
		require.Empty(t, values(t, do(t, h, http.MethodGet, "/redis/get/5")))
	})

	t.Run("writes Time keys with a ten minute TTL", func(t *testing.T) {
		for range 3 {
			rec := do(t, h, http.MethodGet, "/redis/set/5")
			require.Equal(t, http.StatusNoContent, rec.Code)
		}

		keys := mr.DB(5).Keys()
		require.Len(t, keys, 3)
		for _, k := range keys {
			require.True(t, strings.HasPrefix(k, "Time:"), k)
			require.Equal(t, 600*time.Second, mr.DB(5).TTL(k))
			v, err := mr.DB(5).Get(k)
			require.NoError(t, err)
			require.Equal(t, "Hello", v)
		}
		require.Empty(t, mr.DB(0).Keys())
	})

	t.Run("reads them back", func(t *testing.T) {
		vals := values(t, do(t, h, http.MethodGet, "/redis/get/5"))
		require.Len(t, vals, 3)
		for _, v := range vals {
			require.NotNil(t, v)
			require.Equal(t, "Hello", *v)
		}
	})

	t.Run("routes without a database use 0", func(t *testing.T) {
		require.Equal(t, http.StatusNoContent, do(t, h, http.MethodGet, "/redis/set").Code)
		require.Len(t, mr.DB(0).Keys(), 1)
		require.Len(t, values(t, do(t, h, http.MethodGet, "/redis/get")), 1)
	})
}

func TestRedis_InvalidDatabase(t *testing.T) {
	t.Parallel()

	svc, mr := newSingle(t)
	h := httpapi.NewRouter(svc)

	for _, db := range []string{"16", "-1", "abc", "1.5"} {
		for _, path := range []string{"/redis/set/", "/redis/get/"} {
			rec := do(t, h, http.MethodGet, path+db)
			require.Equal(t, http.StatusBadRequest, rec.Code, path+db)
			require.Contains(t, rec.Body.String(), "database")
		}
	}
	require.Zero(t, mr.CommandCount())
}

func TestRedis_CacheUnavailable(t *testing.T) {
	t.Parallel()

	svc, mr := newSingle(t)
	h := httpapi.NewRouter(svc)
	mr.Close()

	rec := do(t, h, http.MethodGet, "/redis/set/1")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = do(t, h, http.MethodDelete, "/redis/clear/user")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRedisClear(t *testing.T) {
	t.Parallel()

	svc, mr := newSingle(t)
	h := httpapi.NewRouter(svc)

	for _, k := range []string{"user::1", "user::2", "name::james", "Time:1"} {
		require.NoError(t, mr.Set(k, "x"))
	}

	t.Run("evicts one namespace", func(t *testing.T) {
		rec := do(t, h, http.MethodDelete, "/redis/clear/user")
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"namespace":"user","evicted":2}`, rec.Body.String())
		require.ElementsMatch(t, []string{"name::james", "Time:1"}, mr.Keys())
	})

	t.Run("rejects glob namespaces", func(t *testing.T) {
		rec := do(t, h, http.MethodDelete, "/redis/clear/user*")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("star flushes database 0", func(t *testing.T) {
		require.NoError(t, mr.DB(3).Set("kept", "x"))

		rec := do(t, h, http.MethodDelete, "/redis/clear/*")
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Empty(t, mr.Keys())
		require.True(t, mr.DB(3).Exists("kept"))
	})

	t.Run("all flushes database 0", func(t *testing.T) {
		require.NoError(t, mr.Set("user::9", "x"))
		require.NoError(t, mr.Set("Time:2", "Hello"))

		rec := do(t, h, http.MethodDelete, "/redis/clear/all")
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Empty(t, mr.Keys())
		require.True(t, mr.DB(3).Exists("kept"))
	})
}

func TestRedis_Sharded(t *testing.T) {
	t.Parallel()

	t.Run("non-zero database is a bad request", func(t *testing.T) {
		t.Parallel()

		svc, servers := newSharded(t, pool.MultiKeyStrict)
		h := httpapi.NewRouter(svc)

		rec := do(t, h, http.MethodGet, "/redis/set/3")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		for _, s := range servers {
			require.Zero(t, s.CommandCount())
		}
	})

	t.Run("merge policy reads keys from every shard", func(t *testing.T) {
		t.Parallel()

		svc, servers := newSharded(t, pool.MultiKeyMerge)
		h := httpapi.NewRouter(svc, httpapi.WithClock(tick()))

		for range 20 {
			require.Equal(t, http.StatusNoContent, do(t, h, http.MethodGet, "/redis/set/0").Code)
		}
		used := 0
		for _, s := range servers {
			if len(s.Keys()) > 0 {
				used++
			}
		}
		require.Greater(t, used, 1)

		require.Len(t, values(t, do(t, h, http.MethodGet, "/redis/get/0")), 20)

		require.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/redis/clear/*").Code)
		for _, s := range servers {
			require.Empty(t, s.Keys())
		}
	})
}

func TestHealth(t *testing.T) {
	t.Parallel()

	svc, mr := newSingle(t)
	h := httpapi.NewRouter(svc)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health/live").Code)

	rec := do(t, h, http.MethodGet, "/health/ready?format=json")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"pool"`)

	mr.Close()
	require.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/health/ready").Code)
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	ep, err := redis.ParseAddr(mr.Addr(), "")
	require.NoError(t, err)
	p, err := pool.NewSingle(context.Background(), ep, pool.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })

	reg := prometheus.NewRegistry()
	reg.MustRegister(pool.NewCollector(p, nil))
	svc := kv.New(p, kv.WithMetrics(kv.NewMetrics(reg)))

	h := httpapi.NewRouter(svc, httpapi.WithMetrics(reg))
	require.Equal(t, http.StatusNoContent, do(t, h, http.MethodGet, "/redis/set/0").Code)

	rec := do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "redisgate_pool_connections_idle")
	require.Contains(t, body, `redisgate_kv_command_duration_seconds_count{command="setex"} 1`)

	require.Equal(t, http.StatusNotFound, do(t, httpapi.NewRouter(svc), http.MethodGet, "/metrics").Code)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	svc, _ := newSingle(t)
	h := httpapi.NewRouter(svc)

	rec := do(t, h, http.MethodGet, "/health/live")
	require.NotEmpty(t, rec.Header().Get(httpapi.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-Id", "upstream-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "upstream-42", rec.Header().Get(httpapi.RequestIDHeader))

	require.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPost, "/redis/set/0").Code)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, fmt.Sprintf("/redis/%s", "nope")).Code)
}

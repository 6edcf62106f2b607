package pool_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/redisgate/pkg/pool"
	"github.com/dmitrymomot/redisgate/pkg/redis"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, pool.DefaultConfig().Validate())

	testCases := []struct {
		name string
		cfg  pool.Config
	}{
		{name: "zero max total", cfg: pool.Config{MaxTotal: 0}},
		{name: "negative min idle", cfg: pool.Config{MaxTotal: 2, MaxIdle: 2, MinIdle: -1}},
		{name: "min idle above max idle", cfg: pool.Config{MaxTotal: 4, MaxIdle: 1, MinIdle: 2}},
		{name: "max idle above max total", cfg: pool.Config{MaxTotal: 2, MaxIdle: 3}},
		{name: "negative max wait", cfg: pool.Config{MaxTotal: 1, MaxIdle: 1, MaxWait: -time.Second}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.ErrorIs(t, tc.cfg.Validate(), pool.ErrConfigInvalid)
		})
	}
}

func TestParseTopology(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in      string
		want    pool.Topology
		wantErr bool
	}{
		{in: "single", want: pool.TopologySingle},
		{in: "Arbiter", want: pool.TopologyArbiter},
		{in: " sharded ", want: pool.TopologySharded},
		{in: "single,sharded", wantErr: true},
		{in: "cluster", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()

			got, err := pool.ParseTopology(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, pool.ErrConfigInvalid)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("single topology", func(t *testing.T) {
		t.Parallel()

		_, ep := newServer(t)
		p, err := pool.Open(context.Background(), pool.Spec{
			Topology:  pool.TopologySingle,
			Endpoints: []redis.Endpoint{ep},
			Config:    pool.DefaultConfig(),
		})
		require.NoError(t, err)
		defer p.Close(context.Background())

		require.IsType(t, &pool.Single{}, p)
		require.True(t, p.MultiDB())
	})

	t.Run("sharded topology", func(t *testing.T) {
		t.Parallel()

		_, eps := newShards(t, 2)
		p, err := pool.Open(context.Background(), pool.Spec{
			Topology:  pool.TopologySharded,
			Endpoints: eps,
			Config:    pool.DefaultConfig(),
			MultiKey:  pool.MultiKeyMerge,
		})
		require.NoError(t, err)
		defer p.Close(context.Background())

		part, ok := p.(pool.Partitioned)
		require.True(t, ok)
		require.Equal(t, pool.MultiKeyMerge, part.Policy())
	})

	t.Run("single topology with several endpoints is rejected", func(t *testing.T) {
		t.Parallel()

		_, eps := newShards(t, 2)
		_, err := pool.Open(context.Background(), pool.Spec{
			Topology:  pool.TopologySingle,
			Endpoints: eps,
			Config:    pool.DefaultConfig(),
		})
		require.ErrorIs(t, err, pool.ErrConfigInvalid)
	})

	t.Run("unknown topology is rejected", func(t *testing.T) {
		t.Parallel()

		_, ep := newServer(t)
		_, err := pool.Open(context.Background(), pool.Spec{
			Topology:  "cluster",
			Endpoints: []redis.Endpoint{ep},
			Config:    pool.DefaultConfig(),
		})
		require.ErrorIs(t, err, pool.ErrConfigInvalid)
	})

	t.Run("missing endpoints are rejected", func(t *testing.T) {
		t.Parallel()

		_, err := pool.Open(context.Background(), pool.Spec{
			Topology: pool.TopologySingle,
			Config:   pool.DefaultConfig(),
		})
		require.ErrorIs(t, err, pool.ErrConfigInvalid)
	})

	t.Run("invalid sizing is rejected", func(t *testing.T) {
		t.Parallel()

		_, ep := newServer(t)
		_, err := pool.Open(context.Background(), pool.Spec{
			Topology:  pool.TopologySingle,
			Endpoints: []redis.Endpoint{ep},
			Config:    pool.Config{MaxTotal: 1, MaxIdle: 1, MinIdle: 2},
		})
		require.ErrorIs(t, err, pool.ErrConfigInvalid)
	})
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	t.Run("nil pool fails", func(t *testing.T) {
		t.Parallel()

		require.ErrorIs(t, pool.Healthcheck(nil)(context.Background()), redis.ErrHealthcheckFailed)
	})

	t.Run("pings a single pool", func(t *testing.T) {
		t.Parallel()

		mr, ep := newServer(t)
		p := newSingle(t, ep, pool.DefaultConfig(), pool.WithDialOptions(redis.WithDialTimeout(100*time.Millisecond)))
		check := pool.Healthcheck(p)

		require.NoError(t, check(context.Background()))
		require.Equal(t, 0, p.Stats().Out)

		mr.Close()
		require.ErrorIs(t, check(context.Background()), redis.ErrHealthcheckFailed)
		require.Equal(t, 0, p.Stats().Out)
	})

	t.Run("pings every shard", func(t *testing.T) {
		t.Parallel()

		servers, eps := newShards(t, 3)
		p := newSharded(t, eps, pool.WithDialOptions(redis.WithDialTimeout(100*time.Millisecond)))
		check := pool.Healthcheck(p)

		require.NoError(t, check(context.Background()))

		servers[1].Close()
		require.ErrorIs(t, check(context.Background()), redis.ErrHealthcheckFailed)
	})
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	_, ep := newServer(t)
	p, err := pool.NewSingle(context.Background(), ep, pool.DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, pool.Shutdown(p)(context.Background()))

	_, err = p.Get(context.Background())
	require.ErrorIs(t, err, pool.ErrPoolClosed)
}

func TestCollector(t *testing.T) {
	t.Parallel()

	_, ep := newServer(t)
	cfg := pool.DefaultConfig()
	cfg.MinIdle = 2
	p := newSingle(t, ep, cfg)

	conn, err := p.Get(context.Background())
	require.NoError(t, err)
	defer p.Put(conn)

	c := pool.NewCollector(p, prometheus.Labels{"topology": "single"})
	require.Equal(t, 6, testutil.CollectAndCount(c))

	reg := prometheus.NewRegistry()
	reg.MustRegister(c)

	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64, len(families))
	for _, mf := range families {
		m := mf.GetMetric()[0]
		switch {
		case m.GetGauge() != nil:
			values[mf.GetName()] = m.GetGauge().GetValue()
		case m.GetCounter() != nil:
			values[mf.GetName()] = m.GetCounter().GetValue()
		}
	}

	require.Equal(t, 1.0, values["redisgate_pool_connections_out"])
	require.Equal(t, 1.0, values["redisgate_pool_connections_idle"])
	require.Equal(t, 2.0, values["redisgate_pool_connections_opened_total"])
}

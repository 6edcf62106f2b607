// Command redisgate serves the pooled cache service over HTTP.
//
// Configuration comes from config.yaml (or the file named by
// REDISGATE_CONFIG) and REDIS_*, ADDRESS, LOG_* and SENTRY_* environment
// variables.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrymomot/redisgate/internal/config"
	"github.com/dmitrymomot/redisgate/internal/httpapi"
	"github.com/dmitrymomot/redisgate/internal/server"
	"github.com/dmitrymomot/redisgate/pkg/health"
	"github.com/dmitrymomot/redisgate/pkg/kv"
	"github.com/dmitrymomot/redisgate/pkg/logger"
	"github.com/dmitrymomot/redisgate/pkg/pool"
)

const flushTimeout = 2 * time.Second

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("redisgate stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	lc, err := cfg.Logger()
	if err != nil {
		return err
	}
	log, flush, err := logger.New(lc, httpapi.RequestIDExtractor())
	if err != nil {
		return err
	}
	defer flush(flushTimeout)

	spec, err := cfg.PoolSpec()
	if err != nil {
		return err
	}

	p, err := pool.Open(ctx, spec,
		pool.WithLogger(log.With(slog.String("component", "pool"))),
		pool.WithDialOptions(cfg.DialOptions()...),
		pool.WithShutdownTimeout(cfg.ShutdownTimeout()),
	)
	if err != nil {
		log.Error("failed to open pool",
			slog.String("topology", string(spec.Topology)),
			slog.Any("error", err),
		)
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		pool.NewCollector(p, prometheus.Labels{"topology": string(spec.Topology)}),
	)

	svc := kv.New(p,
		kv.WithLogger(log.With(slog.String("component", "kv"))),
		kv.WithMetrics(kv.NewMetrics(reg)),
	)

	if err := health.Run(ctx, health.Checks{"redis": pool.Healthcheck(p)}, health.WithTimeout(cfg.ShutdownTimeout())); err != nil {
		log.Warn("cache not reachable yet, serving anyway", slog.Any("error", err))
	}

	log.Info("pool ready",
		slog.String("topology", string(spec.Topology)),
		slog.Int("endpoints", len(spec.Endpoints)),
		slog.Int("max_total", spec.Config.MaxTotal),
	)

	return server.Run(ctx, server.Config{
		Handler: httpapi.NewRouter(svc,
			httpapi.WithLogger(log.With(slog.String("component", "http"))),
			httpapi.WithMetrics(reg),
		),
		Address:         cfg.Address,
		Logger:          log,
		ShutdownTimeout: cfg.ShutdownTimeout() + time.Second,
		ShutdownHooks:   []server.Hook{pool.Shutdown(p)},
	})
}

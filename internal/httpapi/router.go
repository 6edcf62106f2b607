// Package httpapi exposes the cache service over HTTP.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/redisgate/pkg/health"
	"github.com/dmitrymomot/redisgate/pkg/kv"
	"github.com/dmitrymomot/redisgate/pkg/logger"
	"github.com/dmitrymomot/redisgate/pkg/pool"
)

const defaultRequestTimeout = 10 * time.Second

// Option configures the router.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	gatherer       prometheus.Gatherer
	requestTimeout time.Duration
	now            func() time.Time
}

// WithLogger sets the logger for access logs and recovered panics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics serves g on /metrics. Without it /metrics is not mounted.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(o *options) {
		o.gatherer = g
	}
}

// WithRequestTimeout bounds every request. Default: 10 seconds
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// WithClock replaces the clock used to name written keys.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// NewRouter builds the HTTP handler:
//
//	GET    /redis/set/{database}   write Time:<unix-millis> = Hello for 600s
//	GET    /redis/get/{database}   read every Time:* value
//	GET    /redis/set, /redis/get  the same on database 0
//	DELETE /redis/clear/{namespace} evict <namespace>::*, or everything for "*"
//	GET    /health/live, /health/ready
//	GET    /metrics
func NewRouter(svc *kv.Service, opts ...Option) http.Handler {
	o := &options{
		logger:         logger.NewNope(),
		requestTimeout: defaultRequestTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	h := &handlers{svc: svc, logger: o.logger, now: o.now}
	p := svc.Pool()

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		echoRequestID,
		accessLog(o.logger),
		recoverer(o.logger),
	)

	r.Get("/health/live", health.LivenessHandler())
	r.Get("/health/ready", health.ReadinessHandler(
		health.Checks{"redis": pool.Healthcheck(p)},
		health.WithDetail("pool", func() any { return p.Stats() }),
		health.WithLogger(o.logger),
	))

	if o.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/redis", func(r chi.Router) {
		r.Use(middleware.Timeout(o.requestTimeout))

		r.Get("/set", h.set)
		r.Get("/get", h.get)
		r.Get("/set/{database}", h.set)
		r.Get("/get/{database}", h.get)
		r.Delete("/clear/{namespace}", h.clear)
	})

	return r
}

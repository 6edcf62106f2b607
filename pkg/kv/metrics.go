package kv

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records command latency and failures.
type Metrics struct {
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// NewMetrics creates the command metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "redisgate",
				Subsystem: "kv",
				Name:      "command_duration_seconds",
				Help:      "Histogram of cache command latency, borrow included.",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"command"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "redisgate",
				Subsystem: "kv",
				Name:      "command_errors_total",
				Help:      "Cache command failures turned into neutral results, by kind.",
			},
			[]string{"command", "kind"},
		),
	}
	reg.MustRegister(m.duration, m.failures)
	return m
}

func (m *Metrics) observe(command string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(command).Observe(d.Seconds())
	if err != nil {
		m.failures.WithLabelValues(command, errorKind(err)).Inc()
	}
}

package pool

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports pool counters as prometheus metrics.
type Collector struct {
	pool Pool

	out       *prometheus.Desc
	idle      *prometheus.Desc
	opened    *prometheus.Desc
	destroyed *prometheus.Desc
	waits     *prometheus.Desc
	timeouts  *prometheus.Desc
}

// NewCollector returns a collector reading p.Stats on every scrape.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(pool.NewCollector(p, prometheus.Labels{"topology": "single"}))
func NewCollector(p Pool, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("redisgate", "pool", name), help, nil, constLabels)
	}
	return &Collector{
		pool:      p,
		out:       desc("connections_out", "Connections currently borrowed."),
		idle:      desc("connections_idle", "Connections parked and ready for reuse."),
		opened:    desc("connections_opened_total", "Connections opened since start."),
		destroyed: desc("connections_destroyed_total", "Connections destroyed since start."),
		waits:     desc("borrow_waits_total", "Borrows that had to wait for a free slot."),
		timeouts:  desc("borrow_timeouts_total", "Borrows that failed with the pool exhausted."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.out
	ch <- c.idle
	ch <- c.opened
	ch <- c.destroyed
	ch <- c.waits
	ch <- c.timeouts
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stats()
	ch <- prometheus.MustNewConstMetric(c.out, prometheus.GaugeValue, float64(s.Out))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.Idle))
	ch <- prometheus.MustNewConstMetric(c.opened, prometheus.CounterValue, float64(s.Opened))
	ch <- prometheus.MustNewConstMetric(c.destroyed, prometheus.CounterValue, float64(s.Destroyed))
	ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, float64(s.Waits))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(s.Timeouts))
}

package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	hits    *prometheus.CounterVec
	misses  *prometheus.CounterVec
	entries prometheus.Gauge
}

// NewMetrics creates the cache collectors and registers them with reg
// when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "simplecd",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Number of cache lookups served from the cache, by key prefix.",
			},
			[]string{"prefix"},
		),
		misses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "simplecd",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Number of cache lookups that had to load, by key prefix.",
			},
			[]string{"prefix"},
		),
		entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "simplecd",
				Subsystem: "cache",
				Name:      "entries",
				Help:      "Number of keys currently cached.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.entries)
	}
	return m
}

func (m *Metrics) hit(key string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(prefixOf(key)).Inc()
}

func (m *Metrics) miss(key string) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(prefixOf(key)).Inc()
}

func (m *Metrics) setEntries(n int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(n))
}

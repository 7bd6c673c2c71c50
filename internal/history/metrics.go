package history

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics reports cache behaviour: hits, misses, and how often concurrent
// misses were coalesced into one build.
type Metrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	coalesced prometheus.Counter
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs the collectors on the given registerer.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taedam",
			Subsystem: "history",
			Name:      "cache_hits_total",
			Help:      "Block lookups served from the cache.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taedam",
			Subsystem: "history",
			Name:      "cache_misses_total",
			Help:      "Block lookups that required a build.",
		}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taedam",
			Subsystem: "history",
			Name:      "coalesced_builds_total",
			Help:      "Lookups that waited on another caller's in-flight build.",
		}),
	}
	reg.MustRegister(m.hits, m.misses, m.coalesced)
	return m
}

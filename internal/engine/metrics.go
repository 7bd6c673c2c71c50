package engine

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors reporting turn execution.
type Metrics struct {
	turnDuration    *prometheus.HistogramVec
	dispatcherSteps prometheus.Histogram
	routingErrors   prometheus.Counter
	turnFailures    *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level instance registered with the
// global registry. Created once to avoid duplicate-registration panics when
// multiple orchestrators exist (tests, embedded runners).
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs the collectors on the given registerer. Passing a
// fresh registry yields independent collectors for tests. Registration errors
// panic, mirroring promauto.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		turnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "taedam",
				Subsystem: "engine",
				Name:      "turn_duration_seconds",
				Help:      "Wall time of one turn by route and terminal type.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "type"},
		),
		dispatcherSteps: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "taedam",
				Subsystem: "engine",
				Name:      "dispatcher_steps",
				Help:      "Tasks executed per turn.",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 32},
			},
		),
		routingErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "taedam",
				Subsystem: "engine",
				Name:      "routing_errors_total",
				Help:      "Tasks naming an unregistered capability.",
			},
		),
		turnFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taedam",
				Subsystem: "engine",
				Name:      "turn_failures_total",
				Help:      "Turns ending in an error envelope.",
			},
			[]string{"reason"},
		),
	}
	reg.MustRegister(m.turnDuration, m.dispatcherSteps, m.routingErrors, m.turnFailures)
	return m
}

func (m *Metrics) observeTurn(route, typ string, elapsed time.Duration) {
	m.turnDuration.WithLabelValues(route, typ).Observe(elapsed.Seconds())
}

func (m *Metrics) observeSteps(steps int) {
	m.dispatcherSteps.Observe(float64(steps))
}

func (m *Metrics) incRoutingError() {
	m.routingErrors.Inc()
}

func (m *Metrics) incFailure(reason string) {
	m.turnFailures.WithLabelValues(reason).Inc()
}

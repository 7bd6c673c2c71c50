package maintenance

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts background job outcomes per job name.
type Metrics struct {
	jobs *prometheus.CounterVec
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
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taedam",
				Subsystem: "maintenance",
				Name:      "jobs_total",
				Help:      "Background jobs by name and outcome.",
			},
			[]string{"job", "outcome"},
		),
	}
	reg.MustRegister(m.jobs)
	return m
}

func (m *Metrics) observeJob(job, outcome string) {
	m.jobs.WithLabelValues(job, outcome).Inc()
}

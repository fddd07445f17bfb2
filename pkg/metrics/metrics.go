// Package metrics exports Prometheus metrics for the conversion engine
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the conversion engine's Prometheus collectors. A nil
// *Metrics is valid and records nothing, so library users who do not scrape
// can skip it entirely.
type Metrics struct {
	JobsStarted   prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    prometheus.Counter
	JobsCancelled prometheus.Counter
	RetriesTotal  prometheus.Counter
	ActiveJobs    prometheus.Gauge
	JobDuration   prometheus.Histogram
}

// New creates and registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediaconv_jobs_started_total",
			Help: "Conversion jobs started",
		}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediaconv_jobs_completed_total",
			Help: "Conversion jobs completed successfully",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediaconv_jobs_failed_total",
			Help: "Conversion jobs that ended in failure",
		}),
		JobsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediaconv_jobs_cancelled_total",
			Help: "Conversion jobs cancelled by the user",
		}),
		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediaconv_retries_total",
			Help: "Encoder attempts beyond the first, across all jobs",
		}),
		ActiveJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mediaconv_active_jobs",
			Help: "Jobs currently running",
		}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mediaconv_job_duration_seconds",
			Help:    "Wall-clock duration of finished jobs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	reg.MustRegister(
		m.JobsStarted, m.JobsCompleted, m.JobsFailed, m.JobsCancelled,
		m.RetriesTotal, m.ActiveJobs, m.JobDuration,
	)
	return m
}

// ObserveStart records a job start
func (m *Metrics) ObserveStart() {
	if m == nil {
		return
	}
	m.JobsStarted.Inc()
	m.ActiveJobs.Inc()
}

// ObserveRetry records one extra encoder attempt
func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// ObserveFinish records a job's terminal state and duration
func (m *Metrics) ObserveFinish(seconds float64, cancelled bool, err error) {
	if m == nil {
		return
	}
	m.ActiveJobs.Dec()
	m.JobDuration.Observe(seconds)
	switch {
	case cancelled:
		m.JobsCancelled.Inc()
	case err != nil:
		m.JobsFailed.Inc()
	default:
		m.JobsCompleted.Inc()
	}
}

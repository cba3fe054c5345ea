package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for solve jobs.
type Metrics struct {
	jobsStarted  *prometheus.CounterVec
	jobsFinished *prometheus.CounterVec
	iterations   *prometheus.HistogramVec
	duration     *prometheus.HistogramVec
	running      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qnopt",
			Name:      "jobs_started_total",
			Help:      "Solve jobs accepted, by method.",
		}, []string{"method"}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qnopt",
			Name:      "jobs_finished_total",
			Help:      "Solve jobs finished, by method, final status and termination reason.",
		}, []string{"method", "status", "reason"}),
		iterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qnopt",
			Name:      "solve_iterations",
			Help:      "Outer iterations per completed solve.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qnopt",
			Name:      "solve_duration_seconds",
			Help:      "Wall time per solve.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"method"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "qnopt",
			Name:      "jobs_running",
			Help:      "Solves currently holding a worker.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.jobsStarted, m.jobsFinished, m.iterations, m.duration, m.running)
	}
	return m
}

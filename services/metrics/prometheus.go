package metricsvc

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theoremz/black/core"
)

const namespace = "black"

type Prometheus struct {
	registry    *prometheus.Registry
	syncs       *prometheus.CounterVec
	jobRuns     *prometheus.CounterVec
	jobRows     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
}

var _ core.Metrics = (*Prometheus)(nil)

// NewPrometheus registers the app collectors, plus the Go and process collectors, on a fresh registry.
func NewPrometheus() *Prometheus {
	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_total",
			Help:      "Sync operations by op and outcome.",
		}, []string{"op", "outcome"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Finished batch job runs by job and action.",
		}, []string{"job", "action"}),
		jobRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_rows_total",
			Help:      "Rows seen by batch jobs, by job, action and state (processed|updated).",
		}, []string{"job", "action", "state"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Batch job duration.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"job", "action"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.syncs, m.jobRuns, m.jobRows, m.jobDuration,
	)
	return m
}

func (m *Prometheus) SyncOutcome(op, outcome string) {
	m.syncs.WithLabelValues(op, outcome).Inc()
}

func (m *Prometheus) JobRun(job, action string, processed, updated int, took time.Duration) {
	m.jobRuns.WithLabelValues(job, action).Inc()
	m.jobRows.WithLabelValues(job, action, "processed").Add(float64(processed))
	m.jobRows.WithLabelValues(job, action, "updated").Add(float64(updated))
	m.jobDuration.WithLabelValues(job, action).Observe(took.Seconds())
}

func (m *Prometheus) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

package jobmetrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes reported on the status label.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDropped = "dropped"
)

// Metrics holds the worker collectors. A nil *Metrics is a no-op.
type Metrics struct {
	runs      *prometheus.CounterVec
	failures  *prometheus.CounterVec
	retries   *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	anomalies *prometheus.CounterVec
}

var process struct {
	once    sync.Once
	metrics *Metrics
}

// NewMetrics registers the collectors on reg. A nil reg shares one set
// registered on the process-wide default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg != nil {
		return register(reg)
	}
	process.once.Do(func() {
		process.metrics = register(prometheus.DefaultRegisterer)
	})
	return process.metrics
}

func register(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "educanvas_jobs_total",
			Help: "Background job runs by task type and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "educanvas_jobs_failures_total",
			Help: "Background job runs that returned an error.",
		}, []string{"job"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "educanvas_jobs_retries_total",
			Help: "Background job runs that were redeliveries of a failed task.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "educanvas_job_duration_seconds",
			Help:    "Background job run time.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 30},
		}, []string{"job"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "educanvas_audit_anomalies_total",
			Help: "Anomalous access records persisted, per tenant.",
		}, []string{"tenant"}),
	}
	reg.MustRegister(m.runs, m.failures, m.retries, m.duration, m.anomalies)
	return m
}

// Run measures a single task execution.
type Run struct {
	metrics *Metrics
	job     string
	started time.Time
}

// Track opens a Run for job. Redelivered tasks are counted as retries.
func (m *Metrics) Track(ctx context.Context, job string) *Run {
	if m != nil {
		if n, ok := asynq.GetRetryCount(ctx); ok && n > 0 {
			m.retries.WithLabelValues(job).Inc()
		}
	}
	return &Run{metrics: m, job: job, started: time.Now()}
}

// End records the outcome of the run and hands err back unchanged.
// Errors wrapping asynq.SkipRetry are reported as dropped.
func (r *Run) End(err error) error {
	if r == nil || r.metrics == nil || r.job == "" {
		return err
	}
	m := r.metrics
	m.duration.WithLabelValues(r.job).Observe(time.Since(r.started).Seconds())
	switch {
	case err == nil:
		m.runs.WithLabelValues(r.job, StatusSuccess).Inc()
	case errors.Is(err, asynq.SkipRetry):
		m.runs.WithLabelValues(r.job, StatusDropped).Inc()
		m.failures.WithLabelValues(r.job).Inc()
	default:
		m.runs.WithLabelValues(r.job, StatusFailure).Inc()
		m.failures.WithLabelValues(r.job).Inc()
	}
	return err
}

// AddAnomalies counts anomalous access records for tenant.
func (m *Metrics) AddAnomalies(tenant string, count int) {
	if m == nil || count <= 0 {
		return
	}
	if tenant == "" {
		tenant = "unknown"
	}
	m.anomalies.WithLabelValues(tenant).Add(float64(count))
}

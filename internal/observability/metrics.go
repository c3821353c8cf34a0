// Package observability provides per-stage metrics (Prometheus) and trace
// spans (OpenTelemetry) for pipeline runs.
package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder aggregates stage outcomes in a private registry. Batch commands
// have no scrape endpoint, so the registry is flushed with WriteTextfile for
// the node_exporter textfile collector.
type Recorder struct {
	registry      *prometheus.Registry
	stageDuration *prometheus.HistogramVec
	stageResults  *prometheus.CounterVec
	warnings      *prometheus.CounterVec
	runs          *prometheus.CounterVec
}

// NewRecorder registers the collectors under namespace.
func NewRecorder(namespace string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		stageResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Pipeline stage outcomes.",
		}, []string{"stage", "status"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Non-fatal warnings raised per stage.",
		}, []string{"stage"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed pipeline runs by final status.",
		}, []string{"status"}),
	}
	r.registry.MustRegister(r.stageDuration, r.stageResults, r.warnings, r.runs)
	return r
}

// Observe records a stage outcome.
func (r *Recorder) Observe(_ context.Context, stage string, success bool, d time.Duration) {
	if r == nil || stage == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	r.stageResults.WithLabelValues(stage, status).Inc()
}

// AddWarnings counts n warnings against stage.
func (r *Recorder) AddWarnings(stage string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.warnings.WithLabelValues(stage).Add(float64(n))
}

// ObserveRun counts a finished run.
func (r *Recorder) ObserveRun(status string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(status).Inc()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WriteTextfile atomically writes the registry in text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

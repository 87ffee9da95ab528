package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics records pipeline evaluator and executor activity.
type PipelineMetrics struct {
	evaluations   *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	executions    *prometheus.CounterVec
	execDuration  *prometheus.HistogramVec
	invalidations prometheus.Counter
}

// NewPipelineMetrics creates a new Prometheus-backed pipeline metrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewPipelineMetrics() *PipelineMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &PipelineMetrics{
		evaluations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "patchbay_evaluations_total",
				Help: "Total number of block evaluations by outcome",
			},
			[]string{"outcome"}, // "ok", "error"
		),
		cacheLookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "patchbay_cache_lookups_total",
				Help: "Total number of image cache lookups by result",
			},
			[]string{"result"}, // "hit", "miss", "self_heal"
		),
		executions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "patchbay_executions_total",
				Help: "Total number of block command executions by block name and outcome",
			},
			[]string{"block", "outcome"}, // outcome: "ok", "error"
		),
		execDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "patchbay_execution_duration_seconds",
				Help:    "Block command execution duration by block name",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"block"},
		),
		invalidations: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "patchbay_invalidated_files_total",
				Help: "Total number of cached files deleted by downstream invalidation",
			},
		),
	}
}

// RecordEvaluation records the outcome of one ResultOf call.
func (m *PipelineMetrics) RecordEvaluation(outcome string) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup records a cache consult result.
func (m *PipelineMetrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordExecution records one subprocess run of a block command.
func (m *PipelineMetrics) RecordExecution(block, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(block, outcome).Inc()
	m.execDuration.WithLabelValues(block).Observe(duration.Seconds())
}

// RecordInvalidatedFiles records files deleted during downstream
// invalidation.
func (m *PipelineMetrics) RecordInvalidatedFiles(n int) {
	if m == nil {
		return
	}
	m.invalidations.Add(float64(n))
}

// ThumbnailMetrics records thumbnail service activity.
type ThumbnailMetrics struct {
	requests *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewThumbnailMetrics creates a new Prometheus-backed thumbnail metrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewThumbnailMetrics() *ThumbnailMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &ThumbnailMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "patchbay_thumbnail_requests_total",
				Help: "Total number of thumbnail requests by result",
			},
			[]string{"result"}, // "cached", "generated", "error"
		),
		duration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "patchbay_thumbnail_generation_seconds",
				Help:    "Thumbnailer subprocess duration",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
	}
}

// RecordRequest records the result of one thumbnail request.
func (m *ThumbnailMetrics) RecordRequest(result string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(result).Inc()
}

// RecordGeneration records the duration of one thumbnailer run.
func (m *ThumbnailMetrics) RecordGeneration(duration time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(duration.Seconds())
}

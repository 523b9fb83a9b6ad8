// Package observability exposes the application's Prometheus metrics on a
// private registry, served at /metrics.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/redharvest/redharvest-go/internal/errors"
)

// Metrics holds every collector the application records into.
type Metrics struct {
	registry *prometheus.Registry

	AnalysesTotal         *prometheus.CounterVec
	AnalysisDuration      prometheus.Histogram
	DetectionsPerAnalysis prometheus.Histogram
	RecordsSaved          prometheus.Counter
	RecordsDeleted        prometheus.Counter
	InferenceFailures     *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on a fresh registry.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redharvest_analyses_total",
			Help: "Classification requests by outcome.",
		}, []string{"status"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "redharvest_analysis_duration_seconds",
			Help:    "End to end duration of a classification request.",
			Buckets: prometheus.DefBuckets,
		}),
		DetectionsPerAnalysis: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "redharvest_detections_per_analysis",
			Help:    "Number of fruits detected per analyzed image.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
		RecordsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redharvest_records_saved_total",
			Help: "Analysis records persisted.",
		}),
		RecordsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "redharvest_records_deleted_total",
			Help: "Analysis records deleted.",
		}),
		InferenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redharvest_inference_failures_total",
			Help: "Failed calls to the inference backend by error category.",
		}, []string{"category"}),
	}

	collectors := []prometheus.Collector{
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.DetectionsPerAnalysis,
		m.RecordsSaved,
		m.RecordsDeleted,
		m.InferenceFailures,
	}
	for _, collector := range collectors {
		if err := m.registry.Register(collector); err != nil {
			return nil, errors.New(err).
				Component("observability").
				Category(errors.CategoryConfiguration).
				Context("operation", "register_collector").
				Build()
		}
	}

	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAnalysis tracks one classification request.
func (m *Metrics) RecordAnalysis(ok bool, durationSeconds float64, detections int) {
	status := "success"
	if !ok {
		status = "error"
	}
	m.AnalysesTotal.WithLabelValues(status).Inc()
	if ok {
		m.AnalysisDuration.Observe(durationSeconds)
		m.DetectionsPerAnalysis.Observe(float64(detections))
	}
}

// RecordInferenceFailure tracks a failed backend call by error category.
func (m *Metrics) RecordInferenceFailure(err error) {
	var enhanced *errors.EnhancedError
	category := "unknown"
	if errors.As(err, &enhanced) {
		category = enhanced.GetCategory()
	}
	m.InferenceFailures.WithLabelValues(category).Inc()
}

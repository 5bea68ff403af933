// Package metrics exposes Prometheus instrumentation for the verification
// engine: transition counters, review processing time, queue depth, and batch
// outcome counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	transitions    *prometheus.CounterVec
	processingTime prometheus.Histogram
	queueDepth     *prometheus.GaugeVec
	batchOutcomes  *prometheus.CounterVec
}

// New creates a Metrics with its own registry, including the standard Go and
// process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veriflow",
			Name:      "task_transitions_total",
			Help:      "Task state transitions by source and target status.",
		}, []string{"from", "to"}),
		processingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "veriflow",
			Name:      "review_processing_seconds",
			Help:      "Elapsed review time from assignment to terminal state.",
			Buckets:   prometheus.ExponentialBuckets(15, 2, 10),
		}),
		queueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "veriflow",
			Name:      "queue_depth",
			Help:      "Task counts by status from the latest stats snapshot.",
		}, []string{"status"}),
		batchOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veriflow",
			Name:      "batch_task_outcomes_total",
			Help:      "Per-task batch processing outcomes.",
		}, []string{"outcome"}),
	}
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTransition records one task state transition.
func (m *Metrics) ObserveTransition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

// ObserveProcessingTime records the elapsed seconds of a finished review.
func (m *Metrics) ObserveProcessingTime(seconds float64) {
	m.processingTime.Observe(seconds)
}

// SetQueueDepth records the task count for a status from a stats snapshot.
func (m *Metrics) SetQueueDepth(status string, count int) {
	m.queueDepth.WithLabelValues(status).Set(float64(count))
}

// ObserveBatchOutcome records one per-task batch outcome.
func (m *Metrics) ObserveBatchOutcome(outcome string) {
	m.batchOutcomes.WithLabelValues(outcome).Inc()
}

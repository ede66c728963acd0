// Package metrics holds the pipeline's Prometheus instrumentation and
// the optional /metrics listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline-wide Prometheus collectors.
type Metrics struct {
	RecordsIngested   *prometheus.CounterVec // by source
	RecordsDuplicate  *prometheus.CounterVec // by source
	BatchesProcessed  *prometheus.CounterVec // by source, outcome
	ExtractionSeconds prometheus.Histogram
	EventsCreated     *prometheus.CounterVec // by event type
	LinksCreated      *prometheus.CounterVec // by kind
	WatchesTriggered  *prometheus.CounterVec // by level
	PredictionsTotal  *prometheus.CounterVec // by status
}

// New registers the pipeline collectors with the given registerer. Tests
// pass their own registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finradar_records_ingested_total",
			Help: "Records accepted from a source, after dedup",
		}, []string{"source"}),
		RecordsDuplicate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finradar_records_duplicate_total",
			Help: "Records dropped as duplicates",
		}, []string{"source"}),
		BatchesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finradar_batches_total",
			Help: "Batches processed, by outcome",
		}, []string{"source", "outcome"}),
		ExtractionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "finradar_extraction_seconds",
			Help:    "Latency of one extraction chunk call",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		EventsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finradar_events_created_total",
			Help: "Events written to the graph, by type",
		}, []string{"event_type"}),
		LinksCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finradar_causal_links_total",
			Help: "Causal links written, by kind",
		}, []string{"kind"}),
		WatchesTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finradar_watches_triggered_total",
			Help: "Watcher rule triggers, by level",
		}, []string{"level"}),
		PredictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finradar_predictions_total",
			Help: "Prediction lifecycle transitions, by status",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.RecordsIngested, m.RecordsDuplicate, m.BatchesProcessed,
		m.ExtractionSeconds, m.EventsCreated, m.LinksCreated,
		m.WatchesTriggered, m.PredictionsTotal,
	)
	return m
}

// Package metrics exposes Prometheus collectors for ingestion runs and the HTTP API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mtgcatalog"

// Record outcomes.
const (
	OutcomeSaved   = "saved"
	OutcomeSkipped = "skipped"
	OutcomeUnknown = "unknown_card"
	OutcomeEmpty   = "empty"
)

// Stream names.
const (
	StreamSets     = "sets"
	StreamCards    = "cards"
	StreamPrices   = "prices"
	StreamBackfill = "backfill"
)

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// IngestMetrics tracks ingestion runs and per-record outcomes.
// All methods are safe on a nil receiver.
type IngestMetrics struct {
	records     *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

// NewIngestMetrics creates the ingestion collectors and registers them with reg.
func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	m := &IngestMetrics{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Records consumed from the catalog source, by stream and outcome.",
		}, []string{"stream", "outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Ingestion runs, by operation and result.",
		}, []string{"operation", "result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Duration of ingestion runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}, []string{"operation"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run of each operation.",
		}, []string{"operation"}),
	}

	if reg != nil {
		reg.MustRegister(m.records, m.runs, m.runDuration, m.lastSuccess)
	}
	return m
}

// AddRecords counts n records of a stream with the given outcome.
func (m *IngestMetrics) AddRecords(stream, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.records.WithLabelValues(stream, outcome).Add(float64(n))
}

// ObserveRun records the result and duration of an operation that began at start.
func (m *IngestMetrics) ObserveRun(operation string, start time.Time, err error) {
	if m == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "failure"
	}
	m.runs.WithLabelValues(operation, result).Inc()
	m.runDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err == nil {
		m.lastSuccess.WithLabelValues(operation).SetToCurrentTime()
	}
}

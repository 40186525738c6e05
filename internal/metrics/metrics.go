package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Handler struct {
	registry *prometheus.Registry

	RequestsReceived    *prometheus.CounterVec
	RecordsChecked      *prometheus.CounterVec
	LinesSkipped        *prometheus.CounterVec
	IngestRejectedTotal *prometheus.CounterVec
	ValidationFailures  *prometheus.CounterVec
	RoundTripMismatches *prometheus.CounterVec
	RunLatency          *prometheus.HistogramVec
}

type Options struct {
	// Textfile, when set, receives the registry after a check run in the
	// node-exporter textfile format
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty"`
}

// New creates the metrics handler on its own registry
func New(name string) (*Handler, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	factory := promauto.With(registry)
	labels := prometheus.Labels{"service": name}

	return &Handler{
		registry: registry,
		RequestsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_received",
			ConstLabels: labels,
			Help:        "The total number of http requests received",
		}, []string{"status"}),
		RecordsChecked: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "logcontract_records_checked_total",
			ConstLabels: labels,
			Help:        "The total number of records decoded and checked",
		}, []string{"generation"}),
		LinesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "logcontract_lines_skipped_total",
			ConstLabels: labels,
			Help:        "The total number of non-JSON lines skipped by lenient ingestion",
		}, []string{"policy"}),
		IngestRejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "logcontract_ingest_rejected_total",
			ConstLabels: labels,
			Help:        "The total number of ingestion runs aborted",
		}, []string{"reason"}),
		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "logcontract_validation_failures_total",
			ConstLabels: labels,
			Help:        "The total number of conformance failures",
		}, []string{"field"}),
		RoundTripMismatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "logcontract_roundtrip_mismatches_total",
			ConstLabels: labels,
			Help:        "The total number of round-trip mismatches",
		}, []string{"direction"}),
		RunLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "logcontract_run_latency_seconds",
			ConstLabels: labels,
			Help:        "The latency of check runs",
			Buckets:     prometheus.DefBuckets,
		}, []string{"generation", "success"}),
	}, nil
}

// Registry returns the registry all handler metrics live on
func (h *Handler) Registry() *prometheus.Registry {
	return h.registry
}

// IncRequestsReceived increments the http requests counter
func (h *Handler) IncRequestsReceived(status int) {
	h.RequestsReceived.WithLabelValues(fmt.Sprint(status)).Inc()
}

// AddRecordsChecked adds n checked records
func (h *Handler) AddRecordsChecked(generation string, n int) {
	h.RecordsChecked.WithLabelValues(generation).Add(float64(n))
}

// IncLinesSkipped increments the skipped lines counter
func (h *Handler) IncLinesSkipped(policy string) {
	h.LinesSkipped.WithLabelValues(policy).Inc()
}

// IncIngestRejectedTotal increments the ingest rejected counter
func (h *Handler) IncIngestRejectedTotal(reason string) {
	h.IngestRejectedTotal.WithLabelValues(reason).Inc()
}

// IncValidationFailure increments the conformance failure counter
func (h *Handler) IncValidationFailure(field string) {
	h.ValidationFailures.WithLabelValues(field).Inc()
}

// IncRoundTripMismatch increments the round-trip mismatch counter
func (h *Handler) IncRoundTripMismatch(direction string) {
	h.RoundTripMismatches.WithLabelValues(direction).Inc()
}

// ObserveRunLatency records the latency of one check run
func (h *Handler) ObserveRunLatency(duration time.Duration, generation string, success bool) {
	successStr := "true"
	if !success {
		successStr = "false"
	}
	h.RunLatency.WithLabelValues(generation, successStr).Observe(duration.Seconds())
}

// WriteTextfile writes the registry to path for the node-exporter textfile collector
func (h *Handler) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, h.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

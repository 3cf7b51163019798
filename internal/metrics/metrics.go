// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CapturePacketsTotal counts frames read from the capture source
	CapturePacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wiresentry_capture_packets_total",
			Help: "Total number of frames captured",
		},
		[]string{"source"},
	)

	// DecodedPacketsTotal counts recognised packets by protocol
	DecodedPacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wiresentry_decoded_packets_total",
			Help: "Total number of frames decoded into packet records",
		},
		[]string{"protocol"},
	)

	// DiscardedFramesTotal counts frames that matched no supported protocol
	DiscardedFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wiresentry_discarded_frames_total",
			Help: "Total number of frames discarded by the decoder",
		},
	)

	// WindowSize tracks the number of packets held in the window
	WindowSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wiresentry_window_packets",
			Help: "Current number of packets in the detection window",
		},
	)

	// EnrichmentTotal counts reverse lookups by result (resolved, failed, skipped)
	EnrichmentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wiresentry_enrichment_lookups_total",
			Help: "Total number of reverse DNS lookups by result",
		},
		[]string{"result"},
	)

	// EnrichmentBacklog tracks the enrichment queue length
	EnrichmentBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wiresentry_enrichment_backlog",
			Help: "Current number of packets waiting for enrichment",
		},
	)

	// DetectorRunsTotal counts detector executions by outcome (ok, panic)
	DetectorRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wiresentry_detector_runs_total",
			Help: "Total number of detector executions",
		},
		[]string{"detector", "outcome"},
	)

	// DetectorLatencySeconds measures one detector scan
	DetectorLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wiresentry_detector_latency_seconds",
			Help:    "Latency of detector scans in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 100µs to ~3s
		},
		[]string{"detector"},
	)

	// AttacksTotal counts tracker outcomes (created, updated, unchanged)
	AttacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wiresentry_attacks_total",
			Help: "Total number of attack results by merge outcome",
		},
		[]string{"type", "outcome"},
	)

	// SinkErrorsTotal counts failed sink calls
	SinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wiresentry_sink_errors_total",
			Help: "Total number of sink errors",
		},
		[]string{"sink", "op"},
	)

	// HandlerErrorsTotal counts failed or panicking handler calls
	HandlerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wiresentry_handler_errors_total",
			Help: "Total number of handler errors",
		},
		[]string{"handler", "error_type"},
	)

	// ModulesRegistered tracks registered modules by kind
	ModulesRegistered = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wiresentry_modules_registered",
			Help: "Current number of registered modules",
		},
		[]string{"kind"},
	)
)

// Merge outcome label values
const (
	OutcomeCreated   = "created"
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
)

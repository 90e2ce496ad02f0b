// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CaptureFramesTotal counts frames read from the capture handle by classification outcome
	CaptureFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabrictap_capture_frames_total",
			Help: "Total number of frames read by the dispatch loop",
		},
		[]string{"interface", "outcome"},
	)

	// CaptureReadErrorsTotal counts transient read errors
	CaptureReadErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabrictap_capture_read_errors_total",
			Help: "Total number of transient capture read errors",
		},
		[]string{"interface"},
	)

	// DispatchDropsTotal counts classified frames dropped before reaching the handler
	DispatchDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabrictap_dispatch_drops_total",
			Help: "Total number of classified frames dropped",
		},
		[]string{"interface", "reason"},
	)

	// DispatchQueueDepth tracks frames waiting for the handler
	DispatchQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fabrictap_dispatch_queue_depth",
			Help: "Number of classified frames waiting in the dispatch queue",
		},
		[]string{"interface"},
	)

	// HandlerFramesTotal counts handler invocations by result
	HandlerFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabrictap_handler_frames_total",
			Help: "Total number of frames delivered to the handler",
		},
		[]string{"interface", "result"},
	)

	// HandlerLatencySeconds measures handler invocation latency
	HandlerLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fabrictap_handler_latency_seconds",
			Help:    "Latency of handler invocations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1µs to ~1s
		},
		[]string{"interface"},
	)

	// DispatcherState tracks the dispatch loop state
	DispatcherState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fabrictap_dispatcher_state",
			Help: "Current dispatch loop state (0=idle, 1=running, 2=stopped)",
		},
		[]string{"interface"},
	)

	// SenderFramesTotal counts frames written by the transport sender
	SenderFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabrictap_sender_frames_total",
			Help: "Total number of frames transmitted",
		},
		[]string{"interface", "protocol"},
	)

	// SenderBytesTotal counts bytes written by the transport sender
	SenderBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabrictap_sender_bytes_total",
			Help: "Total number of bytes transmitted",
		},
		[]string{"interface"},
	)

	// SenderErrorsTotal counts transport sender failures by error type
	SenderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fabrictap_sender_errors_total",
			Help: "Total number of transmit errors",
		},
		[]string{"interface", "error_type"},
	)
)

// Outcome and result label values.
const (
	OutcomeMatched   = "matched"
	OutcomeUnmatched = "unmatched"
	OutcomeTruncated = "truncated"

	DropQueueFull = "queue_full"
	DropStopped   = "stopped"

	ResultHandled = "handled"
	ResultPanic   = "panic"
)

package dispatch

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"firestige.xyz/fabrictap/internal/metrics"
)

// Stats is a snapshot of dispatch counters.
type Stats struct {
	Captured      uint64 // frames read from the handle
	Matched       uint64
	Unmatched     uint64
	Truncated     uint64
	Enqueued      uint64
	Dropped       uint64 // queue full, newest frame discarded
	Discarded     uint64 // still queued at stop
	Handled       uint64
	HandlerPanics uint64
	ReadErrors    uint64
	KernelDrops   uint64 // ring backends only
}

type counters struct {
	captured      atomic.Uint64
	enqueued      atomic.Uint64
	dropped       atomic.Uint64
	discarded     atomic.Uint64
	handled       atomic.Uint64
	handlerPanics atomic.Uint64
	readErrors    atomic.Uint64
}

// promCounters holds the label-bound Prometheus children of one interface.
type promCounters struct {
	matched    prometheus.Counter
	unmatched  prometheus.Counter
	truncated  prometheus.Counter
	readErrors prometheus.Counter
	queueFull  prometheus.Counter
	stopped    prometheus.Counter
	handled    prometheus.Counter
	panics     prometheus.Counter
	latency    prometheus.Observer
	depth      prometheus.Gauge
	state      prometheus.Gauge
}

func newPromCounters(iface string) promCounters {
	return promCounters{
		matched:    metrics.CaptureFramesTotal.WithLabelValues(iface, metrics.OutcomeMatched),
		unmatched:  metrics.CaptureFramesTotal.WithLabelValues(iface, metrics.OutcomeUnmatched),
		truncated:  metrics.CaptureFramesTotal.WithLabelValues(iface, metrics.OutcomeTruncated),
		readErrors: metrics.CaptureReadErrorsTotal.WithLabelValues(iface),
		queueFull:  metrics.DispatchDropsTotal.WithLabelValues(iface, metrics.DropQueueFull),
		stopped:    metrics.DispatchDropsTotal.WithLabelValues(iface, metrics.DropStopped),
		handled:    metrics.HandlerFramesTotal.WithLabelValues(iface, metrics.ResultHandled),
		panics:     metrics.HandlerFramesTotal.WithLabelValues(iface, metrics.ResultPanic),
		latency:    metrics.HandlerLatencySeconds.WithLabelValues(iface),
		depth:      metrics.DispatchQueueDepth.WithLabelValues(iface),
		state:      metrics.DispatcherState.WithLabelValues(iface),
	}
}

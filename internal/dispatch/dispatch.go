// Package dispatch runs the capture loop: read, classify, queue, handle.
package dispatch

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"firestige.xyz/fabrictap/internal/core"
	"firestige.xyz/fabrictap/internal/core/decoder"
	"firestige.xyz/fabrictap/internal/handler"
	"firestige.xyz/fabrictap/internal/socket"
)

// DefaultQueueCapacity bounds the queue between reader and worker.
const DefaultQueueCapacity = 1024

const (
	readErrorBackoff    = 10 * time.Millisecond
	readErrorLogsPerSec = 5
)

// State is the dispatcher lifecycle state. Stopped is terminal.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithOpener replaces the capture backend.
func WithOpener(open socket.Opener) Option {
	return func(d *Dispatcher) { d.open = open }
}

func WithSocketOptions(opts socket.Options) Option {
	return func(d *Dispatcher) { d.sockOpts = opts }
}

// WithQueueCapacity sets the queue bound. Values below 1 keep the default.
func WithQueueCapacity(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.capacity = n
		}
	}
}

// WithKernelFilter toggles attaching the port filter to the socket (default on).
func WithKernelFilter(on bool) Option {
	return func(d *Dispatcher) { d.kernelFilter = on }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// Dispatcher owns one capture handle, a reader goroutine and a worker
// goroutine joined by a bounded queue. When the queue is full the newest
// frame is dropped and counted; the reader never blocks on the handler.
type Dispatcher struct {
	open         socket.Opener
	sockOpts     socket.Options
	capacity     int
	kernelFilter bool
	log          logrus.FieldLogger

	mu    sync.Mutex
	state State

	iface      string
	handle     socket.Handle
	classifier *decoder.Classifier
	handler    handler.Handler
	queue      chan core.ClassifiedFrame
	stopCh     chan struct{}
	wg         sync.WaitGroup
	stopOnce   sync.Once

	stats   counters
	prom    promCounters
	readLog *logLimiter
}

// New creates an idle dispatcher on the raw AF_PACKET backend.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		open:         socket.OpenRaw,
		sockOpts:     socket.DefaultOptions(),
		capacity:     DefaultQueueCapacity,
		kernelFilter: true,
		log:          logrus.StandardLogger(),
		readLog:      newLogLimiter(readErrorLogsPerSec, time.Second),
	}
	for _, o := range opts {
		o(d)
	}
	d.sockOpts.SendOnly = false
	d.log = d.log.WithField("component", "dispatch")
	return d
}

// State returns the current lifecycle state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start opens a capture handle on iface and begins delivering frames
// selected by sel to h. On failure the dispatcher stays Idle.
func (d *Dispatcher) Start(iface string, sel core.CaptureSelector, h handler.Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateIdle {
		return fmt.Errorf("%w: start while %s", core.ErrInvalidState, d.state)
	}
	if h == nil {
		return fmt.Errorf("%w: nil handler", core.ErrConfigInvalid)
	}
	if err := sel.Validate(); err != nil {
		return err
	}

	handle, err := d.open(iface, d.sockOpts)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", core.ErrSocketOpenFailed, iface, err)
	}

	log := d.log.WithFields(logrus.Fields{"interface": iface, "selector": sel.String()})
	if d.kernelFilter {
		if err := attachFilter(handle, sel); err != nil {
			log.WithError(err).Warn("kernel filter unavailable, filtering in user space only")
		}
	}

	d.iface = iface
	d.handle = handle
	d.classifier = decoder.NewClassifier(sel)
	d.handler = h
	d.queue = make(chan core.ClassifiedFrame, d.capacity)
	d.stopCh = make(chan struct{})
	d.prom = newPromCounters(iface)
	d.log = log
	d.state = StateRunning
	d.prom.state.Set(float64(StateRunning))

	d.wg.Add(2)
	go d.readLoop()
	go d.workLoop()

	log.WithField("queue_capacity", d.capacity).Info("dispatch started")
	return nil
}

func attachFilter(h socket.Handle, sel core.CaptureSelector) error {
	prog, err := socket.PortFilter(sel)
	if err != nil {
		return err
	}
	return h.SetBPF(prog)
}

// Stop closes the handle, joins both goroutines and discards queued
// frames. It is idempotent and safe from any goroutine; concurrent callers
// return once the first has finished.
func (d *Dispatcher) Stop() error {
	var err error
	d.stopOnce.Do(func() { err = d.stop() })
	return err
}

func (d *Dispatcher) stop() error {
	d.mu.Lock()
	if d.state != StateRunning {
		d.state = StateStopped
		d.mu.Unlock()
		return nil
	}
	handle := d.handle
	close(d.stopCh)
	d.mu.Unlock()

	closeErr := handle.Close()
	d.wg.Wait()

	discarded := len(d.queue)
	for i := 0; i < discarded; i++ {
		<-d.queue
	}
	d.stats.discarded.Add(uint64(discarded))
	d.prom.stopped.Add(float64(discarded))
	d.prom.depth.Set(0)

	d.mu.Lock()
	d.state = StateStopped
	d.mu.Unlock()
	d.prom.state.Set(float64(StateStopped))

	st := d.Stats()
	d.log.WithFields(logrus.Fields{
		"captured":       st.Captured,
		"matched":        st.Matched,
		"dropped":        st.Dropped,
		"discarded":      st.Discarded,
		"handled":        st.Handled,
		"read_errors":    st.ReadErrors,
		"handler_panics": st.HandlerPanics,
		"suppressed":     d.readLog.Suppressed(),
	}).Info("dispatch stopped")

	if closeErr != nil {
		return fmt.Errorf("close capture handle: %w", closeErr)
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	classifier := d.classifier
	handle := d.handle
	running := d.state == StateRunning
	d.mu.Unlock()

	st := Stats{
		Captured:      d.stats.captured.Load(),
		Enqueued:      d.stats.enqueued.Load(),
		Dropped:       d.stats.dropped.Load(),
		Discarded:     d.stats.discarded.Load(),
		Handled:       d.stats.handled.Load(),
		HandlerPanics: d.stats.handlerPanics.Load(),
		ReadErrors:    d.stats.readErrors.Load(),
	}
	if classifier != nil {
		cs := classifier.Stats()
		st.Matched, st.Unmatched, st.Truncated = cs.Matched, cs.Unmatched, cs.Truncated
	}
	if ks, ok := handle.(socket.KernelStatter); ok && running {
		if _, drops, err := ks.KernelStats(); err == nil {
			st.KernelDrops = drops
		}
	}
	return st
}

func (d *Dispatcher) stopping() bool {
	select {
	case <-d.stopCh:
		return true
	default:
		return false
	}
}

// readLoop reads, classifies and enqueues until the handle is closed.
func (d *Dispatcher) readLoop() {
	defer d.wg.Done()

	for !d.stopping() {
		data, ci, err := d.handle.ReadPacketData()
		if err != nil {
			if socket.IsTimeout(err) {
				continue
			}
			if errors.Is(err, socket.ErrClosed) || d.stopping() {
				return
			}
			d.readFailed(err)
			continue
		}
		d.stats.captured.Add(1)

		raw := core.RawPacket{
			Data:           data,
			Timestamp:      ci.Timestamp,
			CaptureLen:     uint32(ci.CaptureLength),
			OrigLen:        uint32(ci.Length),
			InterfaceIndex: ci.InterfaceIndex,
		}
		f, outcome := d.classifier.Classify(raw)
		switch outcome {
		case decoder.Matched:
			d.prom.matched.Inc()
		case decoder.Truncated:
			d.prom.truncated.Inc()
			continue
		default:
			d.prom.unmatched.Inc()
			continue
		}

		select {
		case d.queue <- f:
			d.stats.enqueued.Add(1)
			d.prom.depth.Set(float64(len(d.queue)))
		default:
			d.stats.dropped.Add(1)
			d.prom.queueFull.Inc()
		}
	}
}

func (d *Dispatcher) readFailed(err error) {
	d.stats.readErrors.Add(1)
	d.prom.readErrors.Inc()

	err = fmt.Errorf("%w: %w", core.ErrTransientRead, err)
	if d.readLog.Allow(err.Error(), time.Now()) {
		d.log.WithError(err).Warn("capture read failed")
	}

	select {
	case <-d.stopCh:
	case <-time.After(readErrorBackoff):
	}
}

// workLoop delivers queued frames to the handler until stop.
func (d *Dispatcher) workLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopCh:
			return
		case f := <-d.queue:
			d.prom.depth.Set(float64(len(d.queue)))
			d.deliver(f)
		}
	}
}

func (d *Dispatcher) deliver(f core.ClassifiedFrame) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.stats.handlerPanics.Add(1)
			d.prom.panics.Inc()
			d.log.WithFields(logrus.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("handler panicked")
		}
	}()

	d.handler.Handle(f)

	d.stats.handled.Add(1)
	d.prom.handled.Inc()
	d.prom.latency.Observe(time.Since(start).Seconds())
}

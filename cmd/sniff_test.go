package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/fabrictap/internal/core"
	"firestige.xyz/fabrictap/internal/dispatch"
	"firestige.xyz/fabrictap/internal/handler"
)

func capturedFrame() core.ClassifiedFrame {
	return core.ClassifiedFrame{
		Network: core.NetworkAddr{
			SrcIP: netip.MustParseAddr("192.168.0.4"),
			DstIP: netip.MustParseAddr("192.168.1.200"),
			TTL:   64,
		},
		Transport: core.TransportAddr{Protocol: core.ProtocolUDP, SrcPort: 12345, DstPort: 4791},
		Header:    core.RoceV2Header{Version: 2, Opcode: core.OpcodeWrite, QueuePair: 123, PSN: 456},
		Payload:   []byte("Hello RDMA!"),
	}
}

func TestRunSniff_StopsAfterCount(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Capture.Count = 2

	// Stop joins the feeder the way Dispatcher.Stop joins its worker.
	fed := make(chan struct{})
	c := new(MockCapturer)
	c.On("Start", "eth-test", core.RoceV2Selector).
		Run(func(mock.Arguments) {
			h := c.Handler
			go func() {
				defer close(fed)
				for i := 0; i < 3; i++ {
					h.Handle(capturedFrame())
				}
			}()
		}).
		Return(nil)
	c.On("Stop").Run(func(mock.Arguments) { <-fed }).Return(nil)
	c.On("Stats").Return(dispatch.Stats{Captured: 3, Matched: 3, Handled: 3})

	var buf bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := runSniff(ctx, cfg, c, &buf, false)

	assert.NoError(t, err)
	assert.NoError(t, ctx.Err(), "should stop on count, not timeout")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("###[ RoCEv2 ]###")))
	assert.Contains(t, buf.String(), "udp dst port 4791")
	assert.Contains(t, buf.String(), "matched:        3")
	c.AssertExpectations(t)
}

func TestRunSniff_StopsOnCancel(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Capture.Protocol = "tcp"

	c := new(MockCapturer)
	c.On("Start", "eth-test", core.NvmeTcpSelector).Return(nil)
	c.On("Stop").Return(nil)
	c.On("Stats").Return(dispatch.Stats{Dropped: 7, KernelDrops: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := runSniff(ctx, cfg, c, &buf, true)

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "dropped:        7")
	assert.Contains(t, buf.String(), "kernel drops:   2")
	assert.NotContains(t, buf.String(), "handler panics")
	_, isPrinter := c.Handler.(*handler.Printer)
	assert.False(t, isPrinter, "quiet mode should log frames, not print them")
	c.AssertExpectations(t)
}

func TestRunSniff_StartError(t *testing.T) {
	cfg := defaultConfig(t)

	c := new(MockCapturer)
	c.On("Start", mock.Anything, mock.Anything).Return(core.ErrSocketOpenFailed)

	var buf bytes.Buffer
	err := runSniff(context.Background(), cfg, c, &buf, false)

	assert.True(t, errors.Is(err, core.ErrSocketOpenFailed))
	c.AssertNotCalled(t, "Stop")
	c.AssertExpectations(t)
}

func TestRunSniff_InvalidSelector(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Capture.Protocol = "sctp"

	c := new(MockCapturer)

	var buf bytes.Buffer
	err := runSniff(context.Background(), cfg, c, &buf, false)

	assert.ErrorIs(t, err, core.ErrConfigInvalid)
	c.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
}

type failingStopper struct{ err error }

func (s failingStopper) Stop(context.Context) error { return s.err }

func TestStopMetrics_LogsShutdownError(t *testing.T) {
	log, hook := test.NewNullLogger()

	stopMetrics(failingStopper{err: errors.New("listener busy")}, log)

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "metrics server shutdown failed", entry.Message)
	assert.EqualError(t, entry.Data[logrus.ErrorKey].(error), "listener busy")

	hook.Reset()
	stopMetrics(failingStopper{}, log)
	assert.Empty(t, hook.Entries)
}

package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/fabrictap/internal/config"
	"firestige.xyz/fabrictap/internal/core"
	"firestige.xyz/fabrictap/internal/frame"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Interface = "eth-test"
	return cfg
}

func TestRunSend_Success(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Send.Count = 3
	cfg.Send.Interval = time.Millisecond

	s := new(MockSender)
	s.On("SendCount", mock.Anything, "eth-test", mock.MatchedBy(func(f frame.Frame) bool {
		h, ok := f.Header().(core.RoceV2Header)
		return ok && h.QueuePair == 123 && string(f.Payload()) == "Hello RDMA!"
	}), 3, time.Millisecond).Return(nil)

	var buf bytes.Buffer
	err := runSend(context.Background(), cfg, s, &buf, false)

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "###[ RoCEv2 ]###")
	assert.Contains(t, buf.String(), "dport     = 4791")
	assert.Contains(t, buf.String(), "Sent 3 frame(s) on eth-test")
	s.AssertExpectations(t)
}

func TestRunSend_NvmeTcpQuiet(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Send.Protocol = config.SendNvmeTcp
	cfg.Send.SrcIP, cfg.Send.DstIP, cfg.Send.SrcPort, cfg.Send.Payload = "", "", 0, ""
	require.NoError(t, cfg.ValidateAndApplyDefaults())

	s := new(MockSender)
	s.On("SendCount", mock.Anything, "eth-test", mock.MatchedBy(func(f frame.Frame) bool {
		return f.Transport().Protocol == core.ProtocolTCP && f.Transport().DstPort == core.NvmeTcpPort
	}), 1, time.Duration(0)).Return(nil)

	var buf bytes.Buffer
	err := runSend(context.Background(), cfg, s, &buf, true)

	assert.NoError(t, err)
	assert.NotContains(t, buf.String(), "###[")
	assert.Contains(t, buf.String(), "Sent 1 frame(s)")
	s.AssertExpectations(t)
}

func TestRunSend_SenderError(t *testing.T) {
	cfg := defaultConfig(t)

	s := new(MockSender)
	s.On("SendCount", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(core.ErrPermissionDenied)

	var buf bytes.Buffer
	err := runSend(context.Background(), cfg, s, &buf, true)

	assert.ErrorIs(t, err, core.ErrPermissionDenied)
	assert.NotContains(t, buf.String(), "Sent")
	s.AssertExpectations(t)
}

func TestRunSend_InvalidFrame(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Send.DstIP = "fe80::1"

	s := new(MockSender)

	var buf bytes.Buffer
	err := runSend(context.Background(), cfg, s, &buf, false)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidFrame))
	s.AssertNotCalled(t, "SendCount", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestShowable(t *testing.T) {
	cfg := defaultConfig(t)
	f, err := cfg.Send.Frame()
	require.NoError(t, err)

	cf := showable(f)
	assert.Equal(t, uint16(0x0800), cf.Link.EtherType)
	assert.Equal(t, f.Header(), cf.Header)
	assert.Equal(t, f.Payload(), cf.Payload)
}

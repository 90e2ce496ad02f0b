package cmd

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"firestige.xyz/fabrictap/internal/core"
	"firestige.xyz/fabrictap/internal/dispatch"
	"firestige.xyz/fabrictap/internal/frame"
	"firestige.xyz/fabrictap/internal/handler"
)

// MockSender is a mock implementation of frameSender
type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendCount(ctx context.Context, iface string, f frame.Frame, count int, interval time.Duration) error {
	args := m.Called(ctx, iface, f, count, interval)
	return args.Error(0)
}

// MockCapturer is a mock implementation of capturer. The handler passed to
// Start is kept in Handler instead of the recorded arguments, so expectation
// checks never format it while frames are still being delivered.
type MockCapturer struct {
	mock.Mock
	Handler handler.Handler
}

func (m *MockCapturer) Start(iface string, sel core.CaptureSelector, h handler.Handler) error {
	m.Handler = h
	args := m.Called(iface, sel)
	return args.Error(0)
}

func (m *MockCapturer) Stop() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockCapturer) Stats() dispatch.Stats {
	args := m.Called()
	return args.Get(0).(dispatch.Stats)
}

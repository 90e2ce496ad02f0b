package cmd

import (
	"context"
	"time"

	"firestige.xyz/fabrictap/internal/core"
	"firestige.xyz/fabrictap/internal/dispatch"
	"firestige.xyz/fabrictap/internal/frame"
	"firestige.xyz/fabrictap/internal/handler"
)

// frameSender is the part of sender.Sender the send command needs.
type frameSender interface {
	SendCount(ctx context.Context, iface string, f frame.Frame, count int, interval time.Duration) error
}

// capturer is the part of dispatch.Dispatcher the sniff command needs.
type capturer interface {
	Start(iface string, sel core.CaptureSelector, h handler.Handler) error
	Stop() error
	Stats() dispatch.Stats
}

// Package sender transmits built frames on a link-layer socket.
package sender

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"firestige.xyz/fabrictap/internal/core"
	"firestige.xyz/fabrictap/internal/frame"
	"firestige.xyz/fabrictap/internal/metrics"
	"firestige.xyz/fabrictap/internal/socket"
)

// Sender writes frames through a handle opened per call. The handle is
// always closed before Send returns. There is no retry.
type Sender struct {
	open      socket.Opener
	opts      socket.Options
	checksums bool
	log       logrus.FieldLogger
}

// Option configures a Sender.
type Option func(*Sender)

// WithOpener replaces the socket backend.
func WithOpener(open socket.Opener) Option {
	return func(s *Sender) { s.open = open }
}

// WithSocketOptions replaces the handle options. SendOnly is always set.
func WithSocketOptions(opts socket.Options) Option {
	return func(s *Sender) { s.opts = opts }
}

// WithChecksums toggles IP/UDP/TCP checksum computation (default on).
func WithChecksums(on bool) Option {
	return func(s *Sender) { s.checksums = on }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Sender) { s.log = log }
}

// New returns a Sender on the raw AF_PACKET backend.
func New(opts ...Option) *Sender {
	s := &Sender{
		open:      socket.OpenRaw,
		opts:      socket.DefaultOptions(),
		checksums: true,
		log:       logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	s.opts.SendOnly = true
	s.log = s.log.WithField("component", "sender")
	return s
}

// Send transmits f once on iface.
func Send(iface string, f frame.Frame) error {
	return New().Send(iface, f)
}

// Send transmits f once on iface.
func (s *Sender) Send(iface string, f frame.Frame) error {
	return s.SendCount(context.Background(), iface, f, 1, 0)
}

// SendCount transmits f count times on one handle, pausing interval between
// writes. Cancelling ctx stops between writes.
func (s *Sender) SendCount(ctx context.Context, iface string, f frame.Frame, count int, interval time.Duration) (err error) {
	if f.IsZero() {
		return fmt.Errorf("%w: zero frame", core.ErrInvalidFrame)
	}
	if count < 1 {
		return fmt.Errorf("%w: send count must be positive, got %d", core.ErrConfigInvalid, count)
	}

	data, err := f.Serialize(s.checksums)
	if err != nil {
		return err
	}

	h, err := s.open(iface, s.opts)
	if err != nil {
		metrics.SenderErrorsTotal.WithLabelValues(iface, errorType(err, "open")).Inc()
		return fmt.Errorf("open %s: %w", iface, err)
	}
	defer func() {
		if cerr := h.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", iface, cerr)
		}
	}()

	protocol := f.Transport().Protocol.String()
	for i := 0; i < count; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if err := h.WritePacketData(data); err != nil {
			metrics.SenderErrorsTotal.WithLabelValues(iface, errorType(err, "write")).Inc()
			return fmt.Errorf("send on %s: %w", iface, err)
		}
		metrics.SenderFramesTotal.WithLabelValues(iface, protocol).Inc()
		metrics.SenderBytesTotal.WithLabelValues(iface).Add(float64(len(data)))

		s.log.WithFields(logrus.Fields{
			"interface": iface,
			"frame":     f.String(),
			"bytes":     len(data),
			"seq":       i + 1,
		}).Debug("frame sent")
	}
	return nil
}

func errorType(err error, fallback string) string {
	switch {
	case errors.Is(err, core.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, core.ErrInterfaceNotFound):
		return "interface_not_found"
	case errors.Is(err, core.ErrUnsupportedPlatform):
		return "unsupported_platform"
	case errors.Is(err, socket.ErrClosed):
		return "closed"
	default:
		return fallback
	}
}

// Package socket provides link-layer capture and transmit handles bound to a
// named interface.
package socket

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/pkg/errors"
	"golang.org/x/net/bpf"

	"firestige.xyz/fabrictap/internal/core"
)

// ErrClosed is returned by reads on a closed handle.
var ErrClosed = errors.New("socket: handle closed")

// Handle abstracts a link-layer socket. Data returned by ReadPacketData is
// only valid until the next read.
type Handle interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	WritePacketData(data []byte) error
	SetBPF(filter []bpf.RawInstruction) error
	Close() error
}

// Opener opens a Handle bound to an interface.
type Opener func(iface string, opts Options) (Handle, error)

// Backend names.
const (
	BackendRaw      = "raw"
	BackendAFPacket = "afpacket"
)

const (
	defaultSnapLen      = 65535
	defaultPollTimeout  = 100 * time.Millisecond
	defaultBufferSizeMB = 8
)

// Options configures a Handle.
type Options struct {
	SnapLen      int
	PollTimeout  time.Duration // bounds ReadPacketData; expiry returns core.ErrTimeout
	Promiscuous  bool
	BufferSizeMB int  // afpacket ring size
	SendOnly     bool // raw backend: do not subscribe to inbound traffic
}

// DefaultOptions returns capture defaults.
func DefaultOptions() Options {
	return Options{
		SnapLen:      defaultSnapLen,
		PollTimeout:  defaultPollTimeout,
		Promiscuous:  true,
		BufferSizeMB: defaultBufferSizeMB,
	}
}

func (o Options) withDefaults() Options {
	if o.SnapLen <= 0 {
		o.SnapLen = defaultSnapLen
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = defaultPollTimeout
	}
	if o.BufferSizeMB <= 0 {
		o.BufferSizeMB = defaultBufferSizeMB
	}
	return o
}

// OpenerFor returns the Opener of a backend.
func OpenerFor(backend string) (Opener, error) {
	switch backend {
	case "", BackendRaw:
		return OpenRaw, nil
	case BackendAFPacket:
		return OpenRing, nil
	default:
		return nil, fmt.Errorf("%w: unknown capture backend %q", core.ErrConfigInvalid, backend)
	}
}

// IsTimeout reports whether err is a poll timeout rather than a failure.
func IsTimeout(err error) bool {
	return errors.Is(err, core.ErrTimeout)
}

// KernelStatter is implemented by handles that expose kernel ring counters.
type KernelStatter interface {
	KernelStats() (packets, drops uint64, err error)
}

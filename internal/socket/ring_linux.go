//go:build linux && cgo

package socket

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"
	"github.com/pkg/errors"
	"golang.org/x/net/bpf"
)

// ringHandle is a TPACKET_V3 mmap ring. Reads and Close are serialized so the
// ring is never unmapped under a reader; Close waits at most one poll timeout.
type ringHandle struct {
	mu     sync.Mutex
	tp     *afpacket.TPacket
	closed atomic.Bool
}

// OpenRing opens a TPACKET_V3 ring socket bound to iface.
func OpenRing(iface string, opts Options) (Handle, error) {
	opts = opts.withDefaults()

	if _, err := interfaceIndex(iface); err != nil {
		return nil, err
	}

	frameSize, blockSize, numBlocks, err := ringGeometry(opts.BufferSizeMB, opts.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, errors.Wrap(err, "ring geometry")
	}

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(iface),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(opts.PollTimeout),
		afpacket.OptTPacketVersion(afpacket.TPacketVersion3),
		afpacket.SocketRaw,
	)
	if err != nil {
		return nil, mapOpenError("tpacket", iface, err)
	}
	if err := tp.InitSocketStats(); err != nil {
		tp.Close()
		return nil, mapOpenError("socket stats", iface, err)
	}
	return &ringHandle{tp: tp}, nil
}

// ReadPacketData returns a copy of the next frame in the ring.
func (h *ringHandle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed.Load() {
		return nil, gopacket.CaptureInfo{}, ErrClosed
	}
	data, ci, err := h.tp.ReadPacketData()
	if err != nil {
		if errors.Is(err, afpacket.ErrTimeout) || errors.Is(err, afpacket.ErrPoll) {
			return nil, ci, mapReadError(os.ErrDeadlineExceeded)
		}
		return nil, ci, mapReadError(err)
	}
	return data, ci, nil
}

func (h *ringHandle) WritePacketData(data []byte) error {
	if h.closed.Load() {
		return ErrClosed
	}
	return errors.Wrap(h.tp.WritePacketData(data), "write frame")
}

func (h *ringHandle) SetBPF(filter []bpf.RawInstruction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return errors.Wrap(h.tp.SetBPF(filter), "attach bpf")
}

// KernelStats reports the ring's packet and drop counters.
func (h *ringHandle) KernelStats() (packets, drops uint64, err error) {
	if h.closed.Load() {
		return 0, 0, ErrClosed
	}
	_, v3, err := h.tp.SocketStats()
	if err != nil {
		return 0, 0, errors.WithStack(err)
	}
	return uint64(v3.Packets()), uint64(v3.Drops()), nil
}

// Close is safe to call more than once.
func (h *ringHandle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tp.Close()
	return nil
}

//go:build linux

package socket

import (
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/pkg/errors"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

var netInterfaceByName = net.InterfaceByName

// rawHandle is an AF_PACKET SOCK_RAW socket bound to one interface. The
// descriptor is registered with the runtime poller, so Close unblocks a
// pending read.
type rawHandle struct {
	file        *os.File
	ifindex     int
	pollTimeout time.Duration
	buf         []byte
	closed      atomic.Bool
}

// OpenRaw opens an AF_PACKET socket bound to iface.
func OpenRaw(iface string, opts Options) (Handle, error) {
	opts = opts.withDefaults()

	ifindex, err := interfaceIndex(iface)
	if err != nil {
		return nil, err
	}

	proto := htons(unix.ETH_P_ALL)
	if opts.SendOnly {
		proto = 0
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, int(proto))
	if err != nil {
		return nil, mapOpenError("socket", iface, err)
	}

	if err := unix.Bind(fd, &unix.SockaddrLinklayer{Protocol: proto, Ifindex: ifindex}); err != nil {
		unix.Close(fd)
		return nil, mapOpenError("bind", iface, err)
	}

	if opts.Promiscuous && !opts.SendOnly {
		mreq := &unix.PacketMreq{Ifindex: int32(ifindex), Type: unix.PACKET_MR_PROMISC}
		if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, mreq); err != nil {
			unix.Close(fd)
			return nil, mapOpenError("promisc", iface, err)
		}
	}

	return &rawHandle{
		file:        os.NewFile(uintptr(fd), "packet:"+iface),
		ifindex:     ifindex,
		pollTimeout: opts.PollTimeout,
		buf:         make([]byte, opts.SnapLen),
	}, nil
}

// ReadPacketData blocks for at most the poll timeout. The returned slice is
// reused by the next call.
func (h *rawHandle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if h.closed.Load() {
		return nil, gopacket.CaptureInfo{}, ErrClosed
	}
	if err := h.file.SetReadDeadline(time.Now().Add(h.pollTimeout)); err != nil {
		return nil, gopacket.CaptureInfo{}, mapReadError(err)
	}

	n, err := h.file.Read(h.buf)
	if err != nil {
		return nil, gopacket.CaptureInfo{}, mapReadError(err)
	}

	ci := gopacket.CaptureInfo{
		Timestamp:      time.Now(),
		CaptureLength:  n,
		Length:         n,
		InterfaceIndex: h.ifindex,
	}
	return h.buf[:n], ci, nil
}

// WritePacketData transmits one complete link-layer frame.
func (h *rawHandle) WritePacketData(data []byte) error {
	if h.closed.Load() {
		return ErrClosed
	}
	n, err := h.file.Write(data)
	if err != nil {
		return errors.Wrap(err, "write frame")
	}
	if n != len(data) {
		return errors.Errorf("short write: %d of %d bytes", n, len(data))
	}
	return nil
}

// SetBPF attaches a classic BPF program to the socket.
func (h *rawHandle) SetBPF(filter []bpf.RawInstruction) error {
	if len(filter) == 0 {
		return errors.New("empty bpf program")
	}
	insns := make([]unix.SockFilter, len(filter))
	for i, ri := range filter {
		insns[i] = unix.SockFilter{Code: ri.Op, Jt: ri.Jt, Jf: ri.Jf, K: ri.K}
	}
	prog := &unix.SockFprog{Len: uint16(len(insns)), Filter: &insns[0]}

	conn, err := h.file.SyscallConn()
	if err != nil {
		return errors.WithStack(err)
	}
	var serr error
	if err := conn.Control(func(fd uintptr) {
		serr = unix.SetsockoptSockFprog(int(fd), unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, prog)
	}); err != nil {
		return errors.WithStack(err)
	}
	return errors.Wrap(serr, "attach bpf")
}

// Close is safe to call more than once.
func (h *rawHandle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	return h.file.Close()
}

package socket

import (
	"errors"
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/bpf"

	"firestige.xyz/fabrictap/internal/core"
	"firestige.xyz/fabrictap/internal/frame"
)

func buildFrame(t *testing.T, src, dst string, header core.ProtocolHeader, dstPort uint16) []byte {
	t.Helper()
	smac, _ := net.ParseMAC("00:11:22:33:44:55")
	dmac, _ := net.ParseMAC("66:77:88:99:aa:bb")
	f, err := frame.Build(
		core.LinkAddr{SrcMAC: smac, DstMAC: dmac},
		core.NetworkAddr{SrcIP: netip.MustParseAddr(src), DstIP: netip.MustParseAddr(dst)},
		core.TransportAddr{SrcPort: 40000, DstPort: dstPort},
		header,
		[]byte("payload"),
	)
	require.NoError(t, err)
	raw, err := f.Bytes()
	require.NoError(t, err)
	return raw
}

func runFilter(t *testing.T, sel core.CaptureSelector, pkt []byte) bool {
	t.Helper()
	prog, err := PortFilter(sel)
	require.NoError(t, err)

	insns := make([]bpf.Instruction, len(prog))
	for i, ri := range prog {
		insns[i] = ri.Disassemble()
	}
	vm, err := bpf.NewVM(insns)
	require.NoError(t, err)

	n, err := vm.Run(pkt)
	require.NoError(t, err)
	return n > 0
}

func TestPortFilter(t *testing.T) {
	rocev2 := core.RoceV2Header{Version: 2, Opcode: core.OpcodeWrite}
	nvme := core.NvmeTcpHeader{PDUType: 1}

	tests := []struct {
		name string
		sel  core.CaptureSelector
		pkt  []byte
		want bool
	}{
		{"roce v4", core.RoceV2Selector, buildFrame(t, "10.0.0.1", "10.0.0.2", rocev2, 0), true},
		{"roce v6", core.RoceV2Selector, buildFrame(t, "fd00::1", "fd00::2", rocev2, 0), true},
		{"roce other port", core.RoceV2Selector, buildFrame(t, "10.0.0.1", "10.0.0.2", rocev2, 9999), false},
		{"nvme v4", core.NvmeTcpSelector, buildFrame(t, "10.0.0.1", "10.0.0.2", nvme, 0), true},
		{"nvme v6", core.NvmeTcpSelector, buildFrame(t, "fd00::1", "fd00::2", nvme, 0), true},
		{"udp under tcp selector", core.NvmeTcpSelector, buildFrame(t, "10.0.0.1", "10.0.0.2", rocev2, 4420), false},
		{"tcp under udp selector", core.RoceV2Selector, buildFrame(t, "10.0.0.1", "10.0.0.2", nvme, 4791), false},
		{"arp", core.RoceV2Selector, append(make([]byte, 12), 0x08, 0x06, 0, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runFilter(t, tt.sel, tt.pkt))
		})
	}
}

func TestPortFilterRejectsNonFirstFragment(t *testing.T) {
	pkt := buildFrame(t, "10.0.0.1", "10.0.0.2", core.RoceV2Header{Version: 2}, 0)
	require.True(t, runFilter(t, core.RoceV2Selector, pkt))

	// fragment offset 185 (x8 bytes)
	pkt[20], pkt[21] = 0x00, 0xB9
	assert.False(t, runFilter(t, core.RoceV2Selector, pkt))
}

func TestPortFilterHonoursIPv4Options(t *testing.T) {
	pkt := buildFrame(t, "10.0.0.1", "10.0.0.2", core.RoceV2Header{Version: 2}, 0)

	// grow the IPv4 header by one NOP word
	withOpts := make([]byte, 0, len(pkt)+4)
	withOpts = append(withOpts, pkt[:34]...)
	withOpts = append(withOpts, 0x01, 0x01, 0x01, 0x01)
	withOpts = append(withOpts, pkt[34:]...)
	withOpts[14] = 0x46

	assert.True(t, runFilter(t, core.RoceV2Selector, withOpts))
}

func TestPortFilterInvalidSelector(t *testing.T) {
	_, err := PortFilter(core.CaptureSelector{Protocol: core.ProtocolUDP})
	assert.Error(t, err)
}

func TestOpenerFor(t *testing.T) {
	for _, backend := range []string{"", BackendRaw, BackendAFPacket} {
		op, err := OpenerFor(backend)
		require.NoError(t, err, backend)
		assert.NotNil(t, op)
	}

	_, err := OpenerFor("pcap")
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestOptionsWithDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, DefaultOptions().SnapLen, opts.SnapLen)
	assert.Equal(t, DefaultOptions().PollTimeout, opts.PollTimeout)
	assert.Equal(t, DefaultOptions().BufferSizeMB, opts.BufferSizeMB)

	custom := Options{SnapLen: 128}.withDefaults()
	assert.Equal(t, 128, custom.SnapLen)
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(core.ErrTimeout))
	assert.True(t, IsTimeout(errors.Join(errors.New("read"), core.ErrTimeout)))
	assert.False(t, IsTimeout(ErrClosed))
}

func TestRingGeometry(t *testing.T) {
	tests := []struct {
		name    string
		sizeMB  int
		snapLen int
	}{
		{"jumbo snap", 8, 65535},
		{"standard mtu", 8, 1514},
		{"small buffer", 1, 9000},
		{"tiny snap", 2, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frameSize, blockSize, numBlocks, err := ringGeometry(tt.sizeMB, tt.snapLen, 4096)
			require.NoError(t, err)

			assert.Zero(t, frameSize%16, "frame alignment")
			assert.GreaterOrEqual(t, frameSize, tt.snapLen)
			assert.Zero(t, blockSize%4096, "block is page aligned")
			assert.Zero(t, blockSize%frameSize, "block holds whole frames")
			assert.LessOrEqual(t, blockSize, 4*1024*1024)
			assert.GreaterOrEqual(t, numBlocks, 1)
		})
	}
}

func TestRingGeometryInvalid(t *testing.T) {
	_, _, _, err := ringGeometry(0, 1514, 4096)
	assert.Error(t, err)
	_, _, _, err = ringGeometry(8, 0, 4096)
	assert.Error(t, err)
	_, _, _, err = ringGeometry(8, 1514, 100)
	assert.Error(t, err)
}

// Package frame builds immutable outgoing frames and serializes them to wire bytes.
package frame

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/fabrictap/internal/core"
)

const (
	defaultTTL       = 64
	defaultTCPWindow = 8192
	tcpFlagsPSHACK   = 0x18
)

// Frame is a fully addressed frame carrying one protocol header and a payload.
// It is immutable: accessors hand out copies. Only Build creates frames.
type Frame struct {
	link      core.LinkAddr
	network   core.NetworkAddr
	transport core.TransportAddr
	header    core.ProtocolHeader
	payload   []byte
}

func (f Frame) Link() core.LinkAddr {
	l := f.link
	l.SrcMAC = append(net.HardwareAddr(nil), f.link.SrcMAC...)
	l.DstMAC = append(net.HardwareAddr(nil), f.link.DstMAC...)
	return l
}

func (f Frame) Network() core.NetworkAddr     { return f.network }
func (f Frame) Transport() core.TransportAddr { return f.transport }
func (f Frame) Header() core.ProtocolHeader   { return f.header }
func (f Frame) Payload() []byte               { return append([]byte(nil), f.payload...) }

// IsZero reports whether f was not produced by Build.
func (f Frame) IsZero() bool { return f.header == nil }

func (f Frame) String() string {
	return fmt.Sprintf("%s %s:%d -> %s:%d %v payload=%dB",
		f.transport.Protocol, f.network.SrcIP, f.transport.SrcPort,
		f.network.DstIP, f.transport.DstPort, f.header, len(f.payload))
}

// Bytes serializes link -> network -> transport -> protocol -> payload.
// Length fields are filled in; checksum fields are left zero.
func (f Frame) Bytes() ([]byte, error) {
	return f.Serialize(false)
}

// Serialize is Bytes with optional IP/UDP/TCP checksum computation.
func (f Frame) Serialize(checksums bool) ([]byte, error) {
	if f.IsZero() {
		return nil, fmt.Errorf("%w: zero frame", core.ErrInvalidFrame)
	}

	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: checksums}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, opts, f.layers()...); err != nil {
		return nil, fmt.Errorf("serialize frame: %w", err)
	}
	return buf.Bytes(), nil
}

func (f Frame) layers() []gopacket.SerializableLayer {
	eth := &layers.Ethernet{
		SrcMAC: f.link.SrcMAC,
		DstMAC: f.link.DstMAC,
	}

	var network gopacket.NetworkLayer
	if f.network.Version() == 6 {
		eth.EthernetType = layers.EthernetTypeIPv6
		network = &layers.IPv6{
			Version:    6,
			HopLimit:   f.network.TTL,
			NextHeader: layers.IPProtocol(f.transport.Protocol),
			SrcIP:      f.network.SrcIP.AsSlice(),
			DstIP:      f.network.DstIP.AsSlice(),
		}
	} else {
		eth.EthernetType = layers.EthernetTypeIPv4
		network = &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      f.network.TTL,
			Protocol: layers.IPProtocol(f.transport.Protocol),
			SrcIP:    f.network.SrcIP.AsSlice(),
			DstIP:    f.network.DstIP.AsSlice(),
		}
	}

	var transport gopacket.SerializableLayer
	switch f.transport.Protocol {
	case core.ProtocolTCP:
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(f.transport.SrcPort),
			DstPort: layers.TCPPort(f.transport.DstPort),
			Seq:     f.transport.SeqNum,
			Ack:     f.transport.AckNum,
			Window:  defaultTCPWindow,
		}
		setTCPFlags(tcp, f.transport.TCPFlags)
		_ = tcp.SetNetworkLayerForChecksum(network)
		transport = tcp
	default:
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(f.transport.SrcPort),
			DstPort: layers.UDPPort(f.transport.DstPort),
		}
		_ = udp.SetNetworkLayerForChecksum(network)
		transport = udp
	}

	return []gopacket.SerializableLayer{
		eth,
		network.(gopacket.SerializableLayer),
		transport,
		layerFor(f.header),
		gopacket.Payload(f.payload),
	}
}

func setTCPFlags(tcp *layers.TCP, flags uint8) {
	tcp.FIN = flags&0x01 != 0
	tcp.SYN = flags&0x02 != 0
	tcp.RST = flags&0x04 != 0
	tcp.PSH = flags&0x08 != 0
	tcp.ACK = flags&0x10 != 0
	tcp.URG = flags&0x20 != 0
}

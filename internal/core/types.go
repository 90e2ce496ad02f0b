// Package core defines core types with zero external dependencies.
package core

import (
	"fmt"
	"net"
	"net/netip"
)

// TransportProtocol is the IP protocol number of the L4 header.
type TransportProtocol uint8

const (
	ProtocolTCP TransportProtocol = 6
	ProtocolUDP TransportProtocol = 17
)

func (p TransportProtocol) String() string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	default:
		return fmt.Sprintf("proto(%d)", uint8(p))
	}
}

// ParseTransportProtocol converts "udp"/"tcp" into a TransportProtocol.
func ParseTransportProtocol(s string) (TransportProtocol, error) {
	switch s {
	case "udp", "UDP":
		return ProtocolUDP, nil
	case "tcp", "TCP":
		return ProtocolTCP, nil
	default:
		return 0, fmt.Errorf("%w: unknown transport protocol %q", ErrConfigInvalid, s)
	}
}

// Well-known destination ports.
const (
	RoceV2Port  uint16 = 4791
	NvmeTcpPort uint16 = 4420
)

// LinkAddr is the L2 Ethernet addressing of a frame.
type LinkAddr struct {
	SrcMAC    net.HardwareAddr
	DstMAC    net.HardwareAddr
	EtherType uint16   // 0x0800=IPv4, 0x86DD=IPv6
	VLANs     []uint16 // 0~2 VLAN IDs, decode only
}

// NetworkAddr is the L3 addressing of a frame. Both addresses must share one family.
type NetworkAddr struct {
	SrcIP netip.Addr
	DstIP netip.Addr
	TTL   uint8
}

// Version returns 4 or 6, or 0 when the source address is unset.
func (n NetworkAddr) Version() uint8 {
	switch {
	case n.SrcIP.Is4():
		return 4
	case n.SrcIP.Is6():
		return 6
	default:
		return 0
	}
}

// TransportAddr is the L4 addressing of a frame.
type TransportAddr struct {
	Protocol TransportProtocol
	SrcPort  uint16
	DstPort  uint16
	SeqNum   uint32 // TCP only
	AckNum   uint32 // TCP only
	TCPFlags uint8  // TCP only
}

// CaptureSelector decides which captured frames are worth decoding.
type CaptureSelector struct {
	Protocol TransportProtocol
	Port     uint16
}

var (
	RoceV2Selector  = CaptureSelector{Protocol: ProtocolUDP, Port: RoceV2Port}
	NvmeTcpSelector = CaptureSelector{Protocol: ProtocolTCP, Port: NvmeTcpPort}
)

func (s CaptureSelector) String() string {
	return fmt.Sprintf("%s dst port %d", s.Protocol, s.Port)
}

// Validate checks that the selector names a supported transport and a non-zero port.
func (s CaptureSelector) Validate() error {
	if s.Protocol != ProtocolUDP && s.Protocol != ProtocolTCP {
		return fmt.Errorf("%w: selector protocol %s", ErrConfigInvalid, s.Protocol)
	}
	if s.Port == 0 {
		return fmt.Errorf("%w: selector port must be non-zero", ErrConfigInvalid)
	}
	return nil
}

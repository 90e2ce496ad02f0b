package decoder

import (
	"encoding/binary"
	"net/netip"

	"firestige.xyz/fabrictap/internal/core"
)

const (
	ipv4HeaderMinLen = 20
	ipv6HeaderLen    = 40
)

// ipHeader is the subset of the L3 header the classifier needs.
type ipHeader struct {
	core.NetworkAddr
	Version  uint8
	Protocol uint8 // TCP=6, UDP=17
	TotalLen uint16
	// Fragment is set for any IPv4 fragment; FragOffset is non-zero for all but the first.
	Fragment   bool
	FragOffset uint16
}

// decodeIP decodes IP header (IPv4 or IPv6).
// Returns ipHeader and the L4 bytes, trimmed to the declared length so that
// Ethernet padding is not mistaken for payload.
func decodeIP(data []byte) (ipHeader, []byte, error) {
	if len(data) < 1 {
		return ipHeader{}, nil, core.ErrTooShort
	}

	switch data[0] >> 4 {
	case 4:
		return decodeIPv4(data)
	case 6:
		return decodeIPv6(data)
	default:
		return ipHeader{}, nil, errNotIP
	}
}

// decodeIPv4 decodes IPv4 header.
func decodeIPv4(data []byte) (ipHeader, []byte, error) {
	if len(data) < ipv4HeaderMinLen {
		return ipHeader{}, nil, core.ErrTooShort
	}

	// IHL is in 32-bit words
	headerLen := int(data[0]&0x0F) * 4
	if headerLen < ipv4HeaderMinLen || len(data) < headerLen {
		return ipHeader{}, nil, core.ErrTooShort
	}

	ip := ipHeader{Version: 4}
	ip.TotalLen = binary.BigEndian.Uint16(data[2:4])
	ip.TTL = data[8]
	ip.Protocol = data[9]

	flagsOffset := binary.BigEndian.Uint16(data[6:8])
	ip.FragOffset = flagsOffset & 0x1FFF
	ip.Fragment = flagsOffset&0x2000 != 0 || ip.FragOffset != 0

	ip.SrcIP = netip.AddrFrom4([4]byte(data[12:16]))
	ip.DstIP = netip.AddrFrom4([4]byte(data[16:20]))

	end := len(data)
	if int(ip.TotalLen) >= headerLen && int(ip.TotalLen) < end {
		end = int(ip.TotalLen)
	}
	return ip, data[headerLen:end], nil
}

// decodeIPv6 decodes IPv6 header. Extension headers are not walked.
func decodeIPv6(data []byte) (ipHeader, []byte, error) {
	if len(data) < ipv6HeaderLen {
		return ipHeader{}, nil, core.ErrTooShort
	}

	ip := ipHeader{Version: 6}

	payloadLen := binary.BigEndian.Uint16(data[4:6])
	ip.TotalLen = uint16(ipv6HeaderLen) + payloadLen

	// Next Header is the equivalent of Protocol in IPv4
	ip.Protocol = data[6]
	ip.TTL = data[7]

	ip.SrcIP = netip.AddrFrom16([16]byte(data[8:24]))
	ip.DstIP = netip.AddrFrom16([16]byte(data[24:40]))

	end := len(data)
	if ipv6HeaderLen+int(payloadLen) < end {
		end = ipv6HeaderLen + int(payloadLen)
	}
	return ip, data[ipv6HeaderLen:end], nil
}

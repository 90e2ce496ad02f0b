package decoder

import (
	"encoding/binary"

	"firestige.xyz/fabrictap/internal/core"
)

const (
	udpHeaderLen    = 8
	tcpHeaderMinLen = 20
)

// decodeTransport decodes transport layer header (TCP/UDP).
// Returns TransportAddr and remaining payload.
func decodeTransport(data []byte, protocol uint8) (core.TransportAddr, []byte, error) {
	switch core.TransportProtocol(protocol) {
	case core.ProtocolTCP:
		return decodeTCP(data)
	case core.ProtocolUDP:
		return decodeUDP(data)
	default:
		return core.TransportAddr{Protocol: core.TransportProtocol(protocol)}, data, errNotTransport
	}
}

// decodeUDP decodes UDP header.
func decodeUDP(data []byte) (core.TransportAddr, []byte, error) {
	if len(data) < udpHeaderLen {
		return core.TransportAddr{}, nil, core.ErrTooShort
	}

	transport := core.TransportAddr{
		Protocol: core.ProtocolUDP,
		SrcPort:  binary.BigEndian.Uint16(data[0:2]),
		DstPort:  binary.BigEndian.Uint16(data[2:4]),
	}

	// Length includes header and data; zero means unset (jumbograms)
	end := len(data)
	if l := int(binary.BigEndian.Uint16(data[4:6])); l >= udpHeaderLen && l < end {
		end = l
	}
	return transport, data[udpHeaderLen:end], nil
}

// decodeTCP decodes TCP header.
func decodeTCP(data []byte) (core.TransportAddr, []byte, error) {
	if len(data) < tcpHeaderMinLen {
		return core.TransportAddr{}, nil, core.ErrTooShort
	}

	transport := core.TransportAddr{
		Protocol: core.ProtocolTCP,
		SrcPort:  binary.BigEndian.Uint16(data[0:2]),
		DstPort:  binary.BigEndian.Uint16(data[2:4]),
		SeqNum:   binary.BigEndian.Uint32(data[4:8]),
		AckNum:   binary.BigEndian.Uint32(data[8:12]),
	}

	// Data offset is in 32-bit words
	headerLen := int(data[12]>>4) * 4
	if headerLen < tcpHeaderMinLen || len(data) < headerLen {
		return transport, nil, core.ErrTooShort
	}

	// Byte 13: | reserved (2 bits) | URG ACK PSH RST SYN FIN |
	transport.TCPFlags = data[13] & 0x3F

	return transport, data[headerLen:], nil
}

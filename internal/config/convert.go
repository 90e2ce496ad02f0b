package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"firestige.xyz/fabrictap/internal/core"
	"firestige.xyz/fabrictap/internal/frame"
	"firestige.xyz/fabrictap/internal/socket"
)

// SocketOptions maps the capture section onto handle options.
func (c CaptureConfig) SocketOptions() socket.Options {
	return socket.Options{
		SnapLen:      c.SnapLen,
		PollTimeout:  c.PollTimeout,
		Promiscuous:  c.Promiscuous,
		BufferSizeMB: c.BufferSizeMB,
	}
}

// Header returns the protocol header described by the send section.
func (s SendConfig) Header() (core.ProtocolHeader, error) {
	switch s.Protocol {
	case SendRoceV2:
		return core.RoceV2Header{
			Version:   s.RoceV2.Version,
			Opcode:    s.RoceV2.Opcode,
			QueuePair: s.RoceV2.QueuePair,
			PSN:       s.RoceV2.PSN,
		}, nil
	case SendNvmeTcp:
		return core.NvmeTcpHeader{PDUType: s.NvmeTcp.PDUType, Flags: s.NvmeTcp.Flags}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported send.protocol: %s", core.ErrConfigInvalid, s.Protocol)
	}
}

// PayloadBytes decodes payload_hex when set, else returns payload as bytes.
func (s SendConfig) PayloadBytes() ([]byte, error) {
	if s.PayloadHex == "" {
		return []byte(s.Payload), nil
	}
	b, err := hex.DecodeString(strings.ReplaceAll(s.PayloadHex, " ", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: send.payload_hex: %v", core.ErrConfigInvalid, err)
	}
	return b, nil
}

// Frame builds the frame described by the send section.
func (s SendConfig) Frame() (frame.Frame, error) {
	srcMAC, err := net.ParseMAC(s.SrcMAC)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("%w: send.src_mac: %v", core.ErrConfigInvalid, err)
	}
	dstMAC, err := net.ParseMAC(s.DstMAC)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("%w: send.dst_mac: %v", core.ErrConfigInvalid, err)
	}
	srcIP, err := netip.ParseAddr(s.SrcIP)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("%w: send.src_ip: %v", core.ErrConfigInvalid, err)
	}
	dstIP, err := netip.ParseAddr(s.DstIP)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("%w: send.dst_ip: %v", core.ErrConfigInvalid, err)
	}
	header, err := s.Header()
	if err != nil {
		return frame.Frame{}, err
	}
	payload, err := s.PayloadBytes()
	if err != nil {
		return frame.Frame{}, err
	}

	return frame.Build(
		core.LinkAddr{SrcMAC: srcMAC, DstMAC: dstMAC},
		core.NetworkAddr{SrcIP: srcIP, DstIP: dstIP, TTL: s.TTL},
		core.TransportAddr{SrcPort: s.SrcPort, DstPort: s.DstPort},
		header,
		payload,
	)
}

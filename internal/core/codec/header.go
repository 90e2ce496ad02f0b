package codec

import (
	"fmt"

	"firestige.xyz/fabrictap/internal/core"
)

// Append appends the encoding of any ProtocolHeader to dst.
func Append(dst []byte, h core.ProtocolHeader) []byte {
	switch v := h.(type) {
	case core.RoceV2Header:
		return AppendRoceV2(dst, v)
	case core.NvmeTcpHeader:
		return AppendNvmeTcp(dst, v)
	default:
		panic(fmt.Sprintf("codec: unknown protocol header %T", h))
	}
}

// Decode decodes the header selected by kind and returns it with the bytes that follow it.
func Decode(kind core.HeaderKind, data []byte) (core.ProtocolHeader, []byte, error) {
	switch kind {
	case core.KindRoceV2:
		h, err := DecodeRoceV2(data)
		if err != nil {
			return nil, nil, err
		}
		return h, data[core.RoceV2HeaderLen:], nil
	case core.KindNvmeTcp:
		h, err := DecodeNvmeTcp(data)
		if err != nil {
			return nil, nil, err
		}
		return h, data[core.NvmeTcpHeaderLen:], nil
	default:
		return nil, nil, fmt.Errorf("codec: unknown header kind %d", kind)
	}
}

// KindFor maps a transport protocol to the header carried over it.
func KindFor(p core.TransportProtocol) (core.HeaderKind, bool) {
	switch p {
	case core.ProtocolUDP:
		return core.KindRoceV2, true
	case core.ProtocolTCP:
		return core.KindNvmeTcp, true
	default:
		return 0, false
	}
}

// Validate reports decode-time warnings for a header and the payload that
// follows it. Warnings never make a frame invalid.
func Validate(h core.ProtocolHeader, payload []byte) []string {
	var warnings []string
	switch v := h.(type) {
	case core.RoceV2Header:
		if v.Version != core.RoceV2Version {
			warnings = append(warnings, fmt.Sprintf("unexpected RoCEv2 version %d (want %d)", v.Version, core.RoceV2Version))
		}
	case core.NvmeTcpHeader:
		if int(v.Length) != len(payload) {
			warnings = append(warnings, fmt.Sprintf("NVMe/TCP length %d does not match payload size %d", v.Length, len(payload)))
		}
	}
	return warnings
}

package codec

import (
	"encoding/binary"

	"firestige.xyz/fabrictap/internal/core"
)

// EncodeNvmeTcp serializes h as pdu_type | flags | length(2).
func EncodeNvmeTcp(h core.NvmeTcpHeader) [core.NvmeTcpHeaderLen]byte {
	var b [core.NvmeTcpHeaderLen]byte
	b[0] = h.PDUType
	b[1] = h.Flags
	binary.BigEndian.PutUint16(b[2:4], h.Length)
	return b
}

// AppendNvmeTcp appends the encoded header to dst.
func AppendNvmeTcp(dst []byte, h core.NvmeTcpHeader) []byte {
	b := EncodeNvmeTcp(h)
	return append(dst, b[:]...)
}

// DecodeNvmeTcp decodes the first 4 bytes of data. The declared length is
// returned as-is; see Validate.
func DecodeNvmeTcp(data []byte) (core.NvmeTcpHeader, error) {
	if len(data) < core.NvmeTcpHeaderLen {
		return core.NvmeTcpHeader{}, core.ErrTooShort
	}
	return core.NvmeTcpHeader{
		PDUType: data[0],
		Flags:   data[1],
		Length:  binary.BigEndian.Uint16(data[2:4]),
	}, nil
}

// Package codec implements the fixed-layout protocol header codecs.
//
// All multi-byte fields are big endian (network byte order).
package codec

import (
	"encoding/binary"

	"firestige.xyz/fabrictap/internal/core"
)

// EncodeRoceV2 serializes h as version | opcode | queue_pair(2) | psn(4).
func EncodeRoceV2(h core.RoceV2Header) [core.RoceV2HeaderLen]byte {
	var b [core.RoceV2HeaderLen]byte
	b[0] = h.Version
	b[1] = h.Opcode
	binary.BigEndian.PutUint16(b[2:4], h.QueuePair)
	binary.BigEndian.PutUint32(b[4:8], h.PSN)
	return b
}

// AppendRoceV2 appends the encoded header to dst.
func AppendRoceV2(dst []byte, h core.RoceV2Header) []byte {
	b := EncodeRoceV2(h)
	return append(dst, b[:]...)
}

// DecodeRoceV2 decodes the first 8 bytes of data. Version and opcode are not
// checked here; see Validate.
func DecodeRoceV2(data []byte) (core.RoceV2Header, error) {
	if len(data) < core.RoceV2HeaderLen {
		return core.RoceV2Header{}, core.ErrTooShort
	}
	return core.RoceV2Header{
		Version:   data[0],
		Opcode:    data[1],
		QueuePair: binary.BigEndian.Uint16(data[2:4]),
		PSN:       binary.BigEndian.Uint32(data[4:8]),
	}, nil
}

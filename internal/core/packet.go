// Package core defines core data structures with zero external dependencies.
package core

import "time"

// RawPacket is one frame read from a capture handle. Data may alias a reused buffer.
type RawPacket struct {
	Data           []byte
	Timestamp      time.Time
	CaptureLen     uint32
	OrigLen        uint32
	InterfaceIndex int
}

// ClassifiedFrame is a captured frame that matched a CaptureSelector and carried a decodable header.
type ClassifiedFrame struct {
	Timestamp time.Time
	Link      LinkAddr
	Network   NetworkAddr
	Transport TransportAddr
	Header    ProtocolHeader
	Payload   []byte   // owned copy
	Warnings  []string // decode-time validation notes, see codec.Validate
}

// RoceV2 returns the header as RoceV2Header when it is one.
func (f ClassifiedFrame) RoceV2() (RoceV2Header, bool) {
	h, ok := f.Header.(RoceV2Header)
	return h, ok
}

// NvmeTcp returns the header as NvmeTcpHeader when it is one.
func (f ClassifiedFrame) NvmeTcp() (NvmeTcpHeader, bool) {
	h, ok := f.Header.(NvmeTcpHeader)
	return h, ok
}

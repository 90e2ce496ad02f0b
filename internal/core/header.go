package core

import "fmt"

// HeaderKind tags the ProtocolHeader variant.
type HeaderKind uint8

const (
	KindRoceV2 HeaderKind = iota + 1
	KindNvmeTcp
)

func (k HeaderKind) String() string {
	switch k {
	case KindRoceV2:
		return "RoCEv2"
	case KindNvmeTcp:
		return "NVMe/TCP"
	default:
		return "unknown"
	}
}

// ProtocolHeader is either a RoceV2Header or an NvmeTcpHeader. The set is closed.
type ProtocolHeader interface {
	Kind() HeaderKind
	// Transport is the L4 protocol the header is carried over.
	Transport() TransportProtocol
	// DefaultPort is the IANA destination port of the protocol.
	DefaultPort() uint16
	// Len is the encoded size in bytes.
	Len() int

	isProtocolHeader()
}

// Encoded header sizes.
const (
	RoceV2HeaderLen  = 8
	NvmeTcpHeaderLen = 4
)

const RoceV2Version uint8 = 2

// RoCEv2 opcodes.
const (
	OpcodeWrite uint8 = 0x01
	OpcodeRead  uint8 = 0x02
)

// RoceV2Header is the fixed 8-byte RoCEv2 profile header.
type RoceV2Header struct {
	Version   uint8
	Opcode    uint8
	QueuePair uint16
	PSN       uint32 // opaque, no ordering is enforced
}

func (RoceV2Header) Kind() HeaderKind             { return KindRoceV2 }
func (RoceV2Header) Transport() TransportProtocol { return ProtocolUDP }
func (RoceV2Header) DefaultPort() uint16          { return RoceV2Port }
func (RoceV2Header) Len() int                     { return RoceV2HeaderLen }
func (RoceV2Header) isProtocolHeader()            {}

// OpcodeName returns a readable opcode name.
func (h RoceV2Header) OpcodeName() string {
	switch h.Opcode {
	case OpcodeWrite:
		return "RDMA_WRITE"
	case OpcodeRead:
		return "RDMA_READ"
	default:
		return fmt.Sprintf("0x%02x", h.Opcode)
	}
}

func (h RoceV2Header) String() string {
	return fmt.Sprintf("RoCEv2{version=%d opcode=%s qp=%d psn=%d}", h.Version, h.OpcodeName(), h.QueuePair, h.PSN)
}

// NvmeTcpHeader is the simplified 4-byte NVMe/TCP PDU header.
type NvmeTcpHeader struct {
	PDUType uint8
	Flags   uint8  // opaque bitfield
	Length  uint16 // byte length of the PDU payload that follows
}

func (NvmeTcpHeader) Kind() HeaderKind             { return KindNvmeTcp }
func (NvmeTcpHeader) Transport() TransportProtocol { return ProtocolTCP }
func (NvmeTcpHeader) DefaultPort() uint16          { return NvmeTcpPort }
func (NvmeTcpHeader) Len() int                     { return NvmeTcpHeaderLen }
func (NvmeTcpHeader) isProtocolHeader()            {}

func (h NvmeTcpHeader) String() string {
	return fmt.Sprintf("NVMeTCP{pdu_type=0x%02x flags=0x%02x length=%d}", h.PDUType, h.Flags, h.Length)
}

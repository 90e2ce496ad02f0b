// Package decoder implements L2-L4 decoding and capture classification.
package decoder

import (
	"encoding/binary"
	"net"

	"firestige.xyz/fabrictap/internal/core"
)

const (
	// Ethernet constants
	ethernetHeaderLen = 14
	vlanHeaderLen     = 4

	// EtherType values
	etherTypeIPv4 = 0x0800
	etherTypeIPv6 = 0x86DD
	etherTypeVLAN = 0x8100
	etherTypeQinQ = 0x88A8
)

// decodeEthernet decodes Ethernet frame header (including VLAN tags).
// Returns LinkAddr and remaining payload.
func decodeEthernet(data []byte) (core.LinkAddr, []byte, error) {
	if len(data) < ethernetHeaderLen {
		return core.LinkAddr{}, nil, core.ErrTooShort
	}

	link := core.LinkAddr{
		DstMAC: net.HardwareAddr(append([]byte(nil), data[0:6]...)),
		SrcMAC: net.HardwareAddr(append([]byte(nil), data[6:12]...)),
	}

	etherType := binary.BigEndian.Uint16(data[12:14])
	offset := ethernetHeaderLen

	// Handle VLAN tags (can be nested: QinQ)
	var vlans []uint16
	for etherType == etherTypeVLAN || etherType == etherTypeQinQ {
		if len(data) < offset+vlanHeaderLen {
			return link, nil, core.ErrTooShort
		}

		// VLAN header: 2 bytes TCI + 2 bytes EtherType
		tci := binary.BigEndian.Uint16(data[offset : offset+2])
		vlans = append(vlans, tci&0x0FFF)

		etherType = binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += vlanHeaderLen
	}

	link.EtherType = etherType
	link.VLANs = vlans

	return link, data[offset:], nil
}

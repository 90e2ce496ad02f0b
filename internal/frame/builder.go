package frame

import (
	"fmt"
	"math"
	"net"

	"github.com/sirupsen/logrus"

	"firestige.xyz/fabrictap/internal/core"
)

// Build composes a Frame. The transport protocol follows the header kind and a
// zero destination port becomes the protocol's well-known port. For NVMe/TCP
// the Length field is always recomputed from the payload. No checksums are
// computed here.
func Build(link core.LinkAddr, network core.NetworkAddr, transport core.TransportAddr,
	header core.ProtocolHeader, payload []byte) (Frame, error) {
	if header == nil {
		return Frame{}, fmt.Errorf("%w: missing protocol header", core.ErrInvalidFrame)
	}
	if err := validateLink(link); err != nil {
		return Frame{}, err
	}
	if err := validateNetwork(network); err != nil {
		return Frame{}, err
	}
	if len(payload) > math.MaxUint16 {
		return Frame{}, fmt.Errorf("%w: %d bytes", core.ErrPayloadTooLarge, len(payload))
	}

	if transport.Protocol == 0 {
		transport.Protocol = header.Transport()
	} else if transport.Protocol != header.Transport() {
		return Frame{}, fmt.Errorf("%w: %s header cannot be carried over %s",
			core.ErrInvalidFrame, header.Kind(), transport.Protocol)
	}
	if transport.DstPort == 0 {
		transport.DstPort = header.DefaultPort()
	}
	if transport.Protocol == core.ProtocolTCP && transport.TCPFlags == 0 {
		transport.TCPFlags = tcpFlagsPSHACK
	}
	if network.TTL == 0 {
		network.TTL = defaultTTL
	}

	if h, ok := header.(core.NvmeTcpHeader); ok && int(h.Length) != len(payload) {
		logrus.WithFields(logrus.Fields{
			"declared": h.Length,
			"actual":   len(payload),
		}).Debug("nvme/tcp length corrected from payload")
		h.Length = uint16(len(payload))
		header = h
	}

	return Frame{
		link: core.LinkAddr{
			SrcMAC: append(net.HardwareAddr(nil), link.SrcMAC...),
			DstMAC: append(net.HardwareAddr(nil), link.DstMAC...),
		},
		network:   network,
		transport: transport,
		header:    header,
		payload:   append([]byte(nil), payload...),
	}, nil
}

func validateLink(link core.LinkAddr) error {
	if len(link.SrcMAC) != 6 || len(link.DstMAC) != 6 {
		return fmt.Errorf("%w: source and destination MAC must be 6 bytes", core.ErrInvalidFrame)
	}
	return nil
}

func validateNetwork(n core.NetworkAddr) error {
	if !n.SrcIP.IsValid() || !n.DstIP.IsValid() {
		return fmt.Errorf("%w: source and destination IP are required", core.ErrInvalidFrame)
	}
	// IPv4-mapped IPv6 counts as IPv6 on the wire.
	if n.SrcIP.Is4() != n.DstIP.Is4() {
		return fmt.Errorf("%w: address family mismatch %s -> %s", core.ErrInvalidFrame, n.SrcIP, n.DstIP)
	}
	return nil
}

package frame

import (
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/fabrictap/internal/core"
	"firestige.xyz/fabrictap/internal/core/codec"
)

// Layer type numbers from the range gopacket leaves to applications.
var (
	LayerTypeRoceV2 = gopacket.RegisterLayerType(2791, gopacket.LayerTypeMetadata{
		Name:    "RoCEv2",
		Decoder: gopacket.DecodeFunc(decodeRoceV2Layer),
	})
	LayerTypeNvmeTcp = gopacket.RegisterLayerType(2420, gopacket.LayerTypeMetadata{
		Name:    "NVMeTCP",
		Decoder: gopacket.DecodeFunc(decodeNvmeTcpLayer),
	})
)

// RoceV2 is the gopacket layer form of core.RoceV2Header.
type RoceV2 struct {
	layers.BaseLayer
	Header core.RoceV2Header
}

func (r *RoceV2) LayerType() gopacket.LayerType     { return LayerTypeRoceV2 }
func (r *RoceV2) CanDecode() gopacket.LayerClass    { return LayerTypeRoceV2 }
func (r *RoceV2) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

func (r *RoceV2) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	h, err := codec.DecodeRoceV2(data)
	if err != nil {
		df.SetTruncated()
		return err
	}
	r.Header = h
	r.BaseLayer = layers.BaseLayer{Contents: data[:core.RoceV2HeaderLen], Payload: data[core.RoceV2HeaderLen:]}
	return nil
}

func (r *RoceV2) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(core.RoceV2HeaderLen)
	if err != nil {
		return err
	}
	enc := codec.EncodeRoceV2(r.Header)
	copy(bytes, enc[:])
	return nil
}

func decodeRoceV2Layer(data []byte, p gopacket.PacketBuilder) error {
	r := &RoceV2{}
	if err := r.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(r)
	return p.NextDecoder(r.NextLayerType())
}

// NvmeTcp is the gopacket layer form of core.NvmeTcpHeader.
type NvmeTcp struct {
	layers.BaseLayer
	Header core.NvmeTcpHeader
}

func (n *NvmeTcp) LayerType() gopacket.LayerType     { return LayerTypeNvmeTcp }
func (n *NvmeTcp) CanDecode() gopacket.LayerClass    { return LayerTypeNvmeTcp }
func (n *NvmeTcp) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

func (n *NvmeTcp) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	h, err := codec.DecodeNvmeTcp(data)
	if err != nil {
		df.SetTruncated()
		return err
	}
	n.Header = h
	n.BaseLayer = layers.BaseLayer{Contents: data[:core.NvmeTcpHeaderLen], Payload: data[core.NvmeTcpHeaderLen:]}
	return nil
}

// SerializeTo writes the header. With FixLengths set, Length is taken from
// the bytes already serialized after this layer.
func (n *NvmeTcp) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	payloadLen := len(b.Bytes())
	bytes, err := b.PrependBytes(core.NvmeTcpHeaderLen)
	if err != nil {
		return err
	}
	h := n.Header
	if opts.FixLengths {
		h.Length = uint16(payloadLen)
	}
	enc := codec.EncodeNvmeTcp(h)
	copy(bytes, enc[:])
	return nil
}

func decodeNvmeTcpLayer(data []byte, p gopacket.PacketBuilder) error {
	n := &NvmeTcp{}
	if err := n.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(n)
	return p.NextDecoder(n.NextLayerType())
}

// layerFor wraps a protocol header in its serializable gopacket layer.
func layerFor(h core.ProtocolHeader) gopacket.SerializableLayer {
	switch v := h.(type) {
	case core.RoceV2Header:
		return &RoceV2{Header: v}
	case core.NvmeTcpHeader:
		return &NvmeTcp{Header: v}
	default:
		return nil
	}
}

var bindOnce sync.Once

// Bind maps UDP/4791 to RoCEv2 and TCP/4420 to NVMe/TCP in gopacket's port
// tables, so gopacket.NewPacket decodes the protocol header as its own layer.
// TCP payloads are only dispatched by port with DecodeStreamsAsDatagrams.
func Bind() {
	bindOnce.Do(func() {
		layers.RegisterUDPPortLayerType(layers.UDPPort(core.RoceV2Port), LayerTypeRoceV2)
		layers.RegisterTCPPortLayerType(layers.TCPPort(core.NvmeTcpPort), LayerTypeNvmeTcp)
	})
}

package handler

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
	"github.com/valyala/bytebufferpool"

	"firestige.xyz/fabrictap/internal/core"
	"firestige.xyz/fabrictap/internal/frame"
)

// Printer renders frames as indented layer sections, one field per line.
// After Limit frames it ignores input and closes Done.
type Printer struct {
	mu      sync.Mutex
	w       io.Writer
	limit   int
	hexdump bool
	dump    bool
	printed int
	log     logrus.FieldLogger
	// writeErrs counts failed writes; only the first is logged.
	writeErrs int

	done     chan struct{}
	doneOnce sync.Once
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithLimit stops printing after n frames. Zero means unlimited.
func WithLimit(n int) PrinterOption {
	return func(p *Printer) { p.limit = n }
}

// WithErrorLogger sets where a failed write is reported.
func WithErrorLogger(log logrus.FieldLogger) PrinterOption {
	return func(p *Printer) { p.log = log }
}

// WithHexdump appends a hex dump of the payload.
func WithHexdump(on bool) PrinterOption {
	return func(p *Printer) { p.hexdump = on }
}

// WithLayerDump appends gopacket's layer dump of the frame re-encoded from
// its decoded fields. Checksums and lengths are recomputed, not captured.
func WithLayerDump(on bool) PrinterOption {
	return func(p *Printer) {
		p.dump = on
		if on {
			frame.Bind()
		}
	}
}

func NewPrinter(w io.Writer, opts ...PrinterOption) *Printer {
	p := &Printer{w: w, log: logrus.StandardLogger(), done: make(chan struct{})}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Done is closed once Limit frames have been printed.
func (p *Printer) Done() <-chan struct{} {
	return p.done
}

// Printed returns the number of frames written so far.
func (p *Printer) Printed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed
}

// WriteErrors returns the number of frames whose output could not be written.
func (p *Printer) WriteErrors() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeErrs
}

func (p *Printer) Handle(f core.ClassifiedFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.limit > 0 && p.printed >= p.limit {
		return
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	p.render(buf, f)
	if _, err := p.w.Write(buf.B); err != nil {
		p.writeErrs++
		if p.writeErrs == 1 {
			p.log.WithError(err).Warn("printer write failed, further failures are only counted")
		}
	}
	p.printed++

	if p.limit > 0 && p.printed >= p.limit {
		p.doneOnce.Do(func() { close(p.done) })
	}
}

func (p *Printer) render(buf *bytebufferpool.ByteBuffer, f core.ClassifiedFrame) {
	section(buf, "Ethernet")
	field(buf, "dst", f.Link.DstMAC.String())
	field(buf, "src", f.Link.SrcMAC.String())
	for _, vid := range f.Link.VLANs {
		field(buf, "vlan", strconv.Itoa(int(vid)))
	}
	field(buf, "type", fmt.Sprintf("0x%04x", f.Link.EtherType))

	if f.Network.Version() == 6 {
		section(buf, "IPv6")
		field(buf, "hlim", strconv.Itoa(int(f.Network.TTL)))
	} else {
		section(buf, "IP")
		field(buf, "ttl", strconv.Itoa(int(f.Network.TTL)))
	}
	field(buf, "src", f.Network.SrcIP.String())
	field(buf, "dst", f.Network.DstIP.String())

	if f.Transport.Protocol == core.ProtocolTCP {
		section(buf, "TCP")
		field(buf, "sport", strconv.Itoa(int(f.Transport.SrcPort)))
		field(buf, "dport", strconv.Itoa(int(f.Transport.DstPort)))
		field(buf, "seq", strconv.FormatUint(uint64(f.Transport.SeqNum), 10))
		field(buf, "ack", strconv.FormatUint(uint64(f.Transport.AckNum), 10))
		field(buf, "flags", tcpFlags(f.Transport.TCPFlags))
	} else {
		section(buf, "UDP")
		field(buf, "sport", strconv.Itoa(int(f.Transport.SrcPort)))
		field(buf, "dport", strconv.Itoa(int(f.Transport.DstPort)))
	}

	switch h := f.Header.(type) {
	case core.RoceV2Header:
		section(buf, "RoCEv2")
		field(buf, "version", strconv.Itoa(int(h.Version)))
		field(buf, "opcode", h.OpcodeName())
		field(buf, "qp", strconv.Itoa(int(h.QueuePair)))
		field(buf, "psn", strconv.FormatUint(uint64(h.PSN), 10))
	case core.NvmeTcpHeader:
		section(buf, "NVMeTCP")
		field(buf, "pdu_type", fmt.Sprintf("0x%02x", h.PDUType))
		field(buf, "flags", fmt.Sprintf("0x%02x", h.Flags))
		field(buf, "length", strconv.Itoa(int(h.Length)))
	}

	if len(f.Payload) > 0 {
		section(buf, "Raw")
		field(buf, "load", strconv.QuoteToASCII(string(f.Payload)))
	}
	for _, w := range f.Warnings {
		field(buf, "warning", w)
	}

	if p.hexdump && len(f.Payload) > 0 {
		buf.WriteString(hex.Dump(f.Payload))
	}
	if p.dump {
		p.layerDump(buf, f)
	}
	buf.WriteString("\n")
}

func (p *Printer) layerDump(buf *bytebufferpool.ByteBuffer, f core.ClassifiedFrame) {
	fr, err := frame.Build(f.Link, f.Network, f.Transport, f.Header, f.Payload)
	if err != nil {
		fmt.Fprintf(buf, "  (layer dump unavailable: %v)\n", err)
		return
	}
	data, err := fr.Serialize(true)
	if err != nil {
		fmt.Fprintf(buf, "  (layer dump unavailable: %v)\n", err)
		return
	}
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.DecodeOptions{
		NoCopy:                   true,
		DecodeStreamsAsDatagrams: true,
	})
	buf.WriteString(pkt.Dump())
}

func section(buf *bytebufferpool.ByteBuffer, name string) {
	buf.WriteString("###[ ")
	buf.WriteString(name)
	buf.WriteString(" ]###\n")
}

func field(buf *bytebufferpool.ByteBuffer, name, value string) {
	fmt.Fprintf(buf, "  %-9s = %s\n", name, value)
}

func tcpFlags(flags uint8) string {
	const names = "FSRPAUEC"
	out := make([]byte, 0, 8)
	for i := 0; i < len(names); i++ {
		if flags&(1<<i) != 0 {
			out = append(out, names[i])
		}
	}
	return string(out)
}

package decoder

import (
	"errors"
	"sync/atomic"

	"firestige.xyz/fabrictap/internal/core"
	"firestige.xyz/fabrictap/internal/core/codec"
)

var (
	errNotIP        = errors.New("decoder: not an IP packet")
	errNotTransport = errors.New("decoder: not TCP or UDP")
)

// Outcome explains why a frame was or was not classified.
type Outcome uint8

const (
	Matched Outcome = iota
	// Unmatched frames are well formed but not selected.
	Unmatched
	// Truncated frames ran out of bytes in some layer; they are unmatched noise too.
	Truncated
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Unmatched:
		return "unmatched"
	case Truncated:
		return "truncated"
	default:
		return "unknown"
	}
}

// Classify decides whether raw is selected by sel and, if so, decodes the
// protocol header that follows the transport header. UDP selectors decode
// RoCEv2, TCP selectors decode NVMe/TCP. The returned payload is a copy.
func Classify(raw []byte, sel core.CaptureSelector) (core.ClassifiedFrame, bool) {
	f, outcome := classify(raw, sel)
	return f, outcome == Matched
}

func classify(raw []byte, sel core.CaptureSelector) (core.ClassifiedFrame, Outcome) {
	kind, ok := codec.KindFor(sel.Protocol)
	if !ok {
		return core.ClassifiedFrame{}, Unmatched
	}

	link, rest, err := decodeEthernet(raw)
	if err != nil {
		return core.ClassifiedFrame{}, Truncated
	}
	if link.EtherType != etherTypeIPv4 && link.EtherType != etherTypeIPv6 {
		return core.ClassifiedFrame{}, Unmatched
	}

	ip, rest, err := decodeIP(rest)
	if err != nil {
		return core.ClassifiedFrame{}, outcomeOf(err)
	}
	if core.TransportProtocol(ip.Protocol) != sel.Protocol {
		return core.ClassifiedFrame{}, Unmatched
	}
	// Only the first fragment carries the transport header.
	if ip.FragOffset != 0 {
		return core.ClassifiedFrame{}, Unmatched
	}

	transport, rest, err := decodeTransport(rest, ip.Protocol)
	if err != nil {
		return core.ClassifiedFrame{}, outcomeOf(err)
	}
	if transport.DstPort != sel.Port {
		return core.ClassifiedFrame{}, Unmatched
	}

	header, payload, err := codec.Decode(kind, rest)
	if err != nil {
		return core.ClassifiedFrame{}, outcomeOf(err)
	}

	return core.ClassifiedFrame{
		Link:      link,
		Network:   ip.NetworkAddr,
		Transport: transport,
		Header:    header,
		Payload:   append([]byte(nil), payload...),
		Warnings:  codec.Validate(header, payload),
	}, Matched
}

func outcomeOf(err error) Outcome {
	if errors.Is(err, core.ErrTooShort) {
		return Truncated
	}
	return Unmatched
}

// Classifier applies one selector to a stream of raw packets and counts the outcomes.
type Classifier struct {
	sel core.CaptureSelector

	matched   atomic.Uint64
	unmatched atomic.Uint64
	truncated atomic.Uint64
}

// NewClassifier creates a classifier for sel.
func NewClassifier(sel core.CaptureSelector) *Classifier {
	return &Classifier{sel: sel}
}

// Selector returns the configured selector.
func (c *Classifier) Selector() core.CaptureSelector {
	return c.sel
}

// Classify classifies one raw packet and stamps the capture timestamp on a match.
func (c *Classifier) Classify(raw core.RawPacket) (core.ClassifiedFrame, Outcome) {
	f, outcome := classify(raw.Data, c.sel)
	switch outcome {
	case Matched:
		f.Timestamp = raw.Timestamp
		c.matched.Add(1)
	case Truncated:
		c.truncated.Add(1)
	default:
		c.unmatched.Add(1)
	}
	return f, outcome
}

// ClassifierStats is a snapshot of classifier counters.
type ClassifierStats struct {
	Matched   uint64
	Unmatched uint64
	Truncated uint64
}

// Stats returns classifier statistics.
func (c *Classifier) Stats() ClassifierStats {
	return ClassifierStats{
		Matched:   c.matched.Load(),
		Unmatched: c.unmatched.Load(),
		Truncated: c.truncated.Load(),
	}
}

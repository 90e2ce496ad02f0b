package handler

import (
	"github.com/sirupsen/logrus"

	"firestige.xyz/fabrictap/internal/core"
)

// Logger writes one structured entry per frame.
type Logger struct {
	log logrus.FieldLogger
}

func NewLogger(log logrus.FieldLogger) *Logger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Logger{log: log.WithField("component", "handler")}
}

func (l *Logger) Handle(f core.ClassifiedFrame) {
	fields := logrus.Fields{
		"proto":       f.Transport.Protocol.String(),
		"src":         f.Network.SrcIP.String(),
		"dst":         f.Network.DstIP.String(),
		"sport":       f.Transport.SrcPort,
		"dport":       f.Transport.DstPort,
		"payload_len": len(f.Payload),
	}

	switch h := f.Header.(type) {
	case core.RoceV2Header:
		fields["version"] = h.Version
		fields["opcode"] = h.OpcodeName()
		fields["qp"] = h.QueuePair
		fields["psn"] = h.PSN
	case core.NvmeTcpHeader:
		fields["pdu_type"] = h.PDUType
		fields["flags"] = h.Flags
		fields["length"] = h.Length
	}

	entry := l.log.WithFields(fields)
	if len(f.Warnings) > 0 {
		entry.WithField("warnings", f.Warnings).Warnf("%s frame captured", f.Header.Kind())
		return
	}
	entry.Infof("%s frame captured", f.Header.Kind())
}

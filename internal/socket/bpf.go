package socket

import (
	"golang.org/x/net/bpf"

	"firestige.xyz/fabrictap/internal/core"
)

const (
	bpfAccept = 0x40000
	bpfReject = 0
)

// PortFilter assembles the kernel filter for "<proto> dst port <port>" over
// untagged IPv4 and IPv6 Ethernet frames. Non-first IPv4 fragments are
// rejected, the same as tcpdump's compiled form.
func PortFilter(sel core.CaptureSelector) ([]bpf.RawInstruction, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	proto := uint32(sel.Protocol)
	port := uint32(sel.Port)

	instructions := []bpf.Instruction{
		// 0: EtherType
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x86DD, SkipFalse: 4},
		// 2: IPv6 next header, dst port at 14+40+2
		bpf.LoadAbsolute{Off: 20, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: proto, SkipFalse: 11},
		bpf.LoadAbsolute{Off: 56, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: port, SkipTrue: 8, SkipFalse: 9},
		// 6: IPv4
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: 0x0800, SkipFalse: 8},
		bpf.LoadAbsolute{Off: 23, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: proto, SkipFalse: 6},
		// 9: fragment offset must be zero
		bpf.LoadAbsolute{Off: 20, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: 0x1FFF, SkipTrue: 4},
		// 11: X = IHL*4, dst port at 14+X+2
		bpf.LoadMemShift{Off: 14},
		bpf.LoadIndirect{Off: 16, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: port, SkipFalse: 1},
		// 14
		bpf.RetConstant{Val: bpfAccept},
		bpf.RetConstant{Val: bpfReject},
	}

	return bpf.Assemble(instructions)
}

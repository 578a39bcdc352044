// Package wire implements the length-prefixed, typed message protocol
// exchanged between workers, parameter servers, and the orchestrator.
//
// Every frame on the wire is `len:u64-big-endian || body`. The length
// prefix is big-endian; float32 payloads inside the body are native
// little-endian and are exposed to callers as zero-copy views over the
// receiver's retained buffer (see Reader.Recv in codec.go) — the same discipline
// the teacher applies to kernel-structure buffers in internal/uapi/marshal.go
// (reinterpret a byte buffer in place rather than copy field-by-field).
package wire

import (
	"encoding/binary"
	"fmt"
)

// Tag identifies the wire representation of a Message variant.
type Tag byte

const (
	TagDisconnect    Tag = 0x00
	TagCreateServer  Tag = 0x01
	TagCreateWorker  Tag = 0x02
	TagReportLoss    Tag = 0x03
	TagParameters    Tag = 0x10
	TagGradient      Tag = 0x11
	TagErr           Tag = 0xFF
)

// CommandKind distinguishes the Control variants.
type CommandKind int

const (
	CmdDisconnect CommandKind = iota
	CmdCreateServer
	CmdCreateWorker
	CmdReportLoss
)

// PayloadKind distinguishes the Data variants.
type PayloadKind int

const (
	PayloadParameters PayloadKind = iota
	PayloadGradient
)

// MessageKind distinguishes the top-level Message variants.
type MessageKind int

const (
	KindControl MessageKind = iota
	KindData
	KindErr
)

// ReportLoss carries a worker's reported losses; purely informational
// telemetry (see SPEC_FULL.md §9 "Supplemented features") with no effect
// on training correctness.
type ReportLoss struct {
	WorkerID uint64
	Losses   []float32
}

// Message is the tagged union transmitted over the wire. Exactly one of
// the fields relevant to Kind/Command/Payload is meaningful at a time;
// this mirrors the teacher's practice of a single struct carrying a
// discriminant plus the union's payload fields (see ctrl.DeviceParams).
type Message struct {
	Kind    MessageKind
	Command CommandKind

	// CreateServer / CreateWorker carry raw JSON bytes; internal/specs
	// unmarshals them into ServerSpec/WorkerSpec. Keeping JSON decode out
	// of the wire codec keeps this package ignorant of spec semantics,
	// matching §4.1: "the codec does not interpret message contents
	// beyond tag dispatch."
	SpecJSON []byte

	ReportLoss ReportLoss

	Payload PayloadKind
	Floats  []float32 // Parameters or Gradient, depending on Payload

	ErrText string
}

func Disconnect() Message {
	return Message{Kind: KindControl, Command: CmdDisconnect}
}

func CreateServer(specJSON []byte) Message {
	return Message{Kind: KindControl, Command: CmdCreateServer, SpecJSON: specJSON}
}

func CreateWorker(specJSON []byte) Message {
	return Message{Kind: KindControl, Command: CmdCreateWorker, SpecJSON: specJSON}
}

func ReportLossMsg(workerID uint64, losses []float32) Message {
	return Message{Kind: KindControl, Command: CmdReportLoss, ReportLoss: ReportLoss{WorkerID: workerID, Losses: losses}}
}

func Parameters(p []float32) Message {
	return Message{Kind: KindData, Payload: PayloadParameters, Floats: p}
}

func Gradient(g []float32) Message {
	return Message{Kind: KindData, Payload: PayloadGradient, Floats: g}
}

func Err(msg string) Message {
	return Message{Kind: KindErr, ErrText: msg}
}

func (m Message) String() string {
	switch m.Kind {
	case KindControl:
		switch m.Command {
		case CmdDisconnect:
			return "Control(Disconnect)"
		case CmdCreateServer:
			return "Control(CreateServer)"
		case CmdCreateWorker:
			return "Control(CreateWorker)"
		case CmdReportLoss:
			return fmt.Sprintf("Control(ReportLoss{worker=%d, n=%d})", m.ReportLoss.WorkerID, len(m.ReportLoss.Losses))
		}
	case KindData:
		if m.Payload == PayloadParameters {
			return fmt.Sprintf("Data(Parameters[%d])", len(m.Floats))
		}
		return fmt.Sprintf("Data(Gradient[%d])", len(m.Floats))
	case KindErr:
		return fmt.Sprintf("Err(%q)", m.ErrText)
	}
	return "Message(?)"
}

var byteOrder = binary.BigEndian // length prefix only; float payloads are native little-endian, see floats.go

// Package paramserver implements a distributed, data-parallel parameter-server
// training service: a sharded, concurrently-mutated parameter store, pluggable
// optimizers and synchronizers, and the wire protocol that moves gradients and
// weights between workers, servers, and the orchestrator.
package paramserver

import (
	"errors"
	"fmt"
)

// Kind categorizes failures per the taxonomy: configuration errors are
// caught before any connection is made; transport/framing/protocol and
// SizeMismatch errors abort a single worker task, which the server reports
// in that task's result while its other tasks keep running; no Kind stops
// the whole session.
type Kind string

const (
	KindConfiguration        Kind = "configuration"
	KindTransport            Kind = "transport"
	KindFraming              Kind = "framing"
	KindProtocol             Kind = "protocol"
	KindSizeMismatch         Kind = "size_mismatch"
	KindInitializerExhausted Kind = "initializer_exhausted"
	KindInternal             Kind = "internal"
)

// Error is a structured paramserver error with enough context to log and
// to dispatch on programmatically via errors.As/Is.
type Error struct {
	Op       string // operation that failed, e.g. "store.accumulate", "wire.recv"
	WorkerID int    // worker id, or -1 if not applicable
	Kind     Kind
	Msg      string
	Inner    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" && e.WorkerID >= 0 {
		return fmt.Sprintf("paramserver: %s (op=%s worker=%d)", msg, e.Op, e.WorkerID)
	}
	if e.Op != "" {
		return fmt.Sprintf("paramserver: %s (op=%s)", msg, e.Op)
	}
	return fmt.Sprintf("paramserver: %s", msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports errors.Is comparisons against another *Error by Kind alone,
// so callers can write errors.Is(err, &Error{Kind: KindProtocol}).
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == te.Kind
}

// NewError creates a structured error with no worker context.
func NewError(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, WorkerID: -1, Kind: kind, Msg: msg}
}

// NewWorkerError creates a structured error scoped to one worker connection.
func NewWorkerError(op string, workerID int, kind Kind, msg string) *Error {
	return &Error{Op: op, WorkerID: workerID, Kind: kind, Msg: msg}
}

// WrapError wraps an existing error with paramserver context, preserving the
// inner error for errors.Unwrap/Is chains.
func WrapError(op string, kind Kind, inner error) *Error {
	if inner == nil {
		return nil
	}
	if pe, ok := inner.(*Error); ok {
		return &Error{Op: op, WorkerID: pe.WorkerID, Kind: kind, Msg: pe.Msg, Inner: pe}
	}
	return &Error{Op: op, WorkerID: -1, Kind: kind, Msg: inner.Error(), Inner: inner}
}

// IsKind reports whether err is (or wraps) a *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// Package minererr defines the structured error taxonomy used across the
// pipeline: a small set of error kinds, a cause chain, and a panic value
// reserved for contract violations rather than recoverable conditions.
//
// Grounded on internal/hasher/errors.go's HasherError (a code, a message,
// and optional details) from the source module, generalized from a single
// numeric code to the kinds spec.md §7 names, and given a real cause chain
// via errors.Unwrap so callers can errors.Is/errors.As through it.
package minererr

import "fmt"

// Kind classifies an Error for policy decisions (is this fatal to the
// process, just the backend, or expected and non-fatal).
type Kind int

const (
	// KindGeneral is a logic or contract violation outside the other kinds.
	KindGeneral Kind = iota
	// KindIo is ambient system I/O failure (files, sockets not specific to
	// the hashing backend).
	KindIo
	// KindBackend is a device-specific failure.
	KindBackend
	// KindUsb is a sub-kind of KindBackend carrying a short static
	// description of the failing USB operation.
	KindUsb
	// KindTimer is a clock or duration arithmetic failure (e.g. a clock
	// regression detected between two timestamps).
	KindTimer
)

func (k Kind) String() string {
	switch k {
	case KindGeneral:
		return "general"
	case KindIo:
		return "io"
	case KindBackend:
		return "backend"
	case KindUsb:
		return "usb"
	case KindTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// Error is the structured error type used throughout the pipeline. The
// outermost Kind is the sole value inspected by policy (spec.md §7); the
// cause chain is retained for diagnostics and errors.Is/errors.As.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Cause   error
}

// New constructs an Error of the given kind with a static message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithDetail attaches a formatted detail string and returns the receiver,
// so callers can chain minererr.New(...).WithDetail(...).
func (e *Error) WithDetail(format string, args ...interface{}) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithCause attaches an underlying cause and returns the receiver.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// Wrap builds a new Error of the given kind wrapping cause, carrying
// message as the outward-facing description.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap exposes the cause chain to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, and
// reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var me *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			me = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if me == nil {
		return KindGeneral, false
	}
	return me.Kind, true
}

// Violation is the panic value raised for contract violations — conditions
// that indicate corrupted invariants, not recoverable errors. Spec.md §7:
// "Contract violations ... panic the owning task". Examples: solution
// counter overflow, a short USB read reaching code that assumed length was
// already validated.
type Violation struct {
	Message string
}

func (v Violation) String() string {
	return "contract violation: " + v.Message
}

// Panic raises a Violation with the given formatted message.
func Panic(format string, args ...interface{}) {
	panic(Violation{Message: fmt.Sprintf(format, args...)})
}

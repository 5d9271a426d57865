package request

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a parse failure
type Kind int

const (
	// KindNone is returned by KindOf for a nil error
	KindNone Kind = iota
	// KindIO means the transport failed or closed mid parse, no response should be attempted
	KindIO
	// KindMalformed maps to 400
	KindMalformed
	// KindUnsupported maps to 501
	KindUnsupported
	// KindOversized maps to 500
	KindOversized
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindIO:
		return "io"
	case KindMalformed:
		return "malformed"
	case KindUnsupported:
		return "unsupported"
	case KindOversized:
		return "oversized"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a classified parse failure
type Error struct {
	Kind   Kind
	Reason string
	// Err is the transport error for KindIO
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s request: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s request: %s", e.Kind, e.Reason)
}

// Unwrap returns the underlying transport error, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a parse error. Errors not produced by the
// parser are treated as I/O failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIO
}

func ioError(err error) *Error {
	return &Error{Kind: KindIO, Reason: "transport failed", Err: err}
}

func malformed(format string, args ...interface{}) *Error {
	return &Error{Kind: KindMalformed, Reason: fmt.Sprintf(format, args...)}
}

func unsupported(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnsupported, Reason: fmt.Sprintf(format, args...)}
}

func oversized(format string, args ...interface{}) *Error {
	return &Error{Kind: KindOversized, Reason: fmt.Sprintf(format, args...)}
}

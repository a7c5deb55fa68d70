// Package zerror provides the structured error type used across the fabric.
//
// Every error records the kind of failure, a human-readable message, the
// source location where it was raised, and an optional cause. Rendering an
// error surfaces the whole cause chain so that a log line at the manager
// surface still names the I/O failure that started it.
package zerror

import (
	"fmt"
	"runtime"
	"strings"
)

// Kind is the high-level error category the core distinguishes.
type Kind int

const (
	// KindIO covers link read/write failures, flush timeouts, lease
	// expiration and decode failures.
	KindIO Kind = iota
	// KindSharedMemory covers segment open/create failures and
	// unmappable buffer descriptors.
	KindSharedMemory
	// KindBufferOverflow signals that a serialization did not fit a
	// pre-sized buffer. The error carries the missing byte count.
	KindBufferOverflow
	// KindAuthentication signals a rejected handshake. The error carries
	// the name of the authenticator that rejected it.
	KindAuthentication
	// KindOther is the descriptive fallback.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io error"
	case KindSharedMemory:
		return "shared memory error"
	case KindBufferOverflow:
		return "buffer overflow"
	case KindAuthentication:
		return "authentication error"
	default:
		return "error"
	}
}

// Error is the concrete error value.
type Error struct {
	kind    Kind
	msg     string
	file    string
	line    int
	missing int    // valid for KindBufferOverflow
	auth    string // valid for KindAuthentication
	cause   error
}

// Error renders the message, the raise site, and every nested cause.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.kind.String())
	b.WriteString(": ")
	b.WriteString(e.msg)
	if e.file != "" {
		fmt.Fprintf(&b, " (at %s:%d)", e.file, e.line)
	}
	if e.cause != nil {
		b.WriteString(": caused by: ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

// Unwrap returns the cause for errors.Is/As support.
func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error category.
func (e *Error) Kind() Kind { return e.kind }

// Missing returns the missing byte count of a buffer overflow, 0 otherwise.
func (e *Error) Missing() int { return e.missing }

// Authenticator returns the name of the rejecting authenticator, "" otherwise.
func (e *Error) Authenticator() string { return e.auth }

// Is matches errors of the same kind so callers can test categories with
// errors.Is(err, zerror.New(zerror.KindIO, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.kind == e.kind
}

func newError(kind Kind, msg string, cause error) *Error {
	e := &Error{kind: kind, msg: msg, cause: cause}
	// Skip newError and the exported constructor.
	if _, file, line, ok := runtime.Caller(2); ok {
		e.file = file
		e.line = line
	}
	return e
}

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return newError(kind, msg, nil)
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return newError(kind, fmt.Sprintf(format, args...), nil)
}

// Wrap creates an error of the given kind caused by another error.
func Wrap(kind Kind, msg string, cause error) *Error {
	return newError(kind, msg, cause)
}

// Wrapf creates an error with a formatted message caused by another error.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return newError(kind, fmt.Sprintf(format, args...), cause)
}

// Overflow creates a buffer overflow error carrying the missing byte count.
func Overflow(missing int) *Error {
	e := newError(KindBufferOverflow, fmt.Sprintf("missing %d bytes", missing), nil)
	e.missing = missing
	return e
}

// Authentication creates an authentication error naming the rejecting
// authenticator.
func Authentication(authenticator, msg string) *Error {
	e := newError(KindAuthentication, fmt.Sprintf("%s: %s", authenticator, msg), nil)
	e.auth = authenticator
	return e
}

// IsKind reports whether err is (or wraps) an Error of the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

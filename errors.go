package asciiplay

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the frame pipeline.
type ErrorKind int

// Error kinds.
const (
	Unknown ErrorKind = iota
	// NotFound is a missing directory or file.
	NotFound
	// InvalidInput is a dropped file of an unrecognized type.
	InvalidInput
	// FormatError is a truncated or inconsistent binary container.
	FormatError
	// IoFailure is an underlying read error.
	IoFailure
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case InvalidInput:
		return "invalid input"
	case FormatError:
		return "format error"
	case IoFailure:
		return "io failure"
	default:
		return "unknown"
	}
}

// Sentinels usable with errors.Is. Only the kind is compared.
var (
	ErrNotFound     = &Error{Kind: NotFound}
	ErrInvalidInput = &Error{Kind: InvalidInput}
	ErrFormat       = &Error{Kind: FormatError}
	ErrIO           = &Error{Kind: IoFailure}
)

// Error is the error type returned by the pipeline.
type Error struct {
	Kind ErrorKind
	// Op names the failing operation, e.g. "DecodeCFrame".
	Op string
	// Path is the file or directory involved, if any.
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := "asciiplay: " + e.Op
	if e.Op == "" {
		msg = "asciiplay: " + e.Kind.String()
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Path == ""
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func newError(kind ErrorKind, op, path string, err error, format string, args ...interface{}) *Error {
	return &Error{
		Kind: kind,
		Op:   op,
		Path: path,
		Msg:  fmt.Sprintf(format, args...),
		Err:  err,
	}
}

// NotFoundError reports a missing file or directory.
func NotFoundError(op, path, msg string) error {
	return newError(NotFound, op, path, nil, "%s", msg)
}

// IOError wraps an underlying read error with context.
func IOError(op, path string, err error) error {
	return newError(IoFailure, op, path, err, "")
}

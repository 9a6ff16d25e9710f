package osc

import (
	"errors"
	"fmt"
)

var (
	ErrFormat          = errors.New("osc: malformed message")
	ErrNilMessage      = errors.New("osc: nil message")
	ErrAddressTooLong  = errors.New("osc: address exceeds capacity")
	ErrTypeTagTooLong  = errors.New("osc: type tag exceeds capacity")
	ErrPayloadTooLarge = errors.New("osc: payload exceeds capacity")
	ErrMissingSentinel = errors.New("osc: type tag missing ',' sentinel")
	ErrEmbeddedNUL     = errors.New("osc: string contains NUL byte")
	ErrUnaligned       = errors.New("osc: payload not 4-byte aligned")
	ErrUnknownTag      = errors.New("osc: unknown type tag")
	ErrArgType         = errors.New("osc: argument type mismatch")
)

// FormatError reports malformed or truncated input at a byte offset.
// It matches ErrFormat and, when set, Cause.
type FormatError struct {
	Offset int
	Reason string
	Cause  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("osc: malformed message at offset %d: %s", e.Offset, e.Reason)
}

func (e *FormatError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrFormat}
	}
	return []error{ErrFormat, e.Cause}
}

func formatErr(offset int, cause error, format string, args ...any) error {
	return &FormatError{Offset: offset, Reason: fmt.Sprintf(format, args...), Cause: cause}
}

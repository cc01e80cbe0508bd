package kv

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a core error per the taxonomy: IoError, FormatError,
// ChecksumError, OrderError, TypeError. Callers that need to branch on
// the kind should use errors.As against the concrete *Error type below
// rather than comparing Kind directly, since wrapped causes are
// preserved through Unwrap.
type Kind string

const (
	KindIO       Kind = "IoError"
	KindFormat   Kind = "FormatError"
	KindChecksum Kind = "ChecksumError"
	KindOrder    Kind = "OrderError"
	KindType     Kind = "TypeError"
)

// Error is a typed core error: a kind, a human-readable message, and
// an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewIoError wraps an underlying OS/file error. It always carries a
// cause: an IoError with no cause would mean nothing actually failed.
func NewIoError(op string, cause error) error {
	return &Error{Kind: KindIO, Message: op, Cause: errors.WithStack(cause)}
}

// NewFormatError reports a structurally impossible field: bad magic,
// unknown version, a declared size that overruns the file.
func NewFormatError(format string, args ...any) error {
	return &Error{Kind: KindFormat, Message: fmt.Sprintf(format, args...)}
}

// NewChecksumError reports a CRC32 mismatch on a WAL record or an
// SSTable file. The message always contains the words "checksum" and
// "mismatch" per the testable property in spec.md §8.
func NewChecksumError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Kind: KindChecksum, Message: "checksum mismatch: " + msg}
}

// NewOrderError reports an SSTable writer Add call whose key did not
// strictly increase over the previous key.
func NewOrderError(key, previous []byte) error {
	return &Error{
		Kind:    KindOrder,
		Message: fmt.Sprintf("key %q is not strictly greater than previous key %q", key, previous),
	}
}

// NewTypeError reports an argument of the wrong domain (e.g. a nil or
// empty key where a non-empty octet string is required).
func NewTypeError(format string, args ...any) error {
	return &Error{Kind: KindType, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err (or any error it wraps) has the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

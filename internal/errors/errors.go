// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages, so diagnostics can tell a failed session check apart
// from a confirmed anonymous session without changing what the user sees.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

// All kinds below belong to the single "bootstrap check failed" class.
const (
	// StoreReadFailed indicates the local store could not be read.
	StoreReadFailed Kind = "store_read_failed"
	// DecodeFailed indicates the cached user record could not be decoded.
	DecodeFailed Kind = "decode_failed"
	// RemoteCheckFailed indicates the identity service call failed.
	RemoteCheckFailed Kind = "remote_check_failed"
	// PersistFailed indicates the user record could not be written back to the store.
	PersistFailed Kind = "persist_failed"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

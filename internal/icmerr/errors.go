// Package icmerr defines the error taxonomy shared by every ICM surface.
//
// A Kind is a stable machine tag that survives wrapping: the CLI maps it to
// an exit code, the tool-protocol adapter maps it to a JSON-RPC error's
// data.kind. Leaf code should construct an *Error with New/Wrap; mid-level
// code may add context with Wrap but must never drop the Kind.
package icmerr

import (
	"errors"
	"fmt"
)

// Kind is a stable machine-readable error tag.
type Kind string

const (
	InvalidInput        Kind = "InvalidInput"
	NotFound            Kind = "NotFound"
	Conflict            Kind = "Conflict"
	DanglingReference   Kind = "DanglingReference"
	SchemaMismatch      Kind = "SchemaMismatch"
	StorageFailure      Kind = "StorageFailure"
	Unavailable         Kind = "Unavailable"
	AlreadyConsolidated Kind = "AlreadyConsolidated"
	Cancelled           Kind = "Cancelled"
)

// Error is a tagged error carrying a Kind plus a human message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a tagged error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs a tagged error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind and message to an underlying error without discarding it.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err, walking the unwrap chain. Returns
// StorageFailure for errors that never declared a kind — the conservative
// default for the CLI/tool-protocol exit-code mapping.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return StorageFailure
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		var tagged *Error
		if !errors.As(err, &tagged) {
			return false
		}
		if tagged.Kind == kind {
			return true
		}
		err = tagged.Err
	}
	return false
}

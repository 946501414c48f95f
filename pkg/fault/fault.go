package fault

import (
	"errors"
	"fmt"
)

// Kind is a coarse classification of a failed operation.
type Kind string

const (
	// KindPrecondition covers missing paths, wrong file types and wrong extensions.
	KindPrecondition Kind = "precondition"
	// KindInvalidArchive means the container could not be parsed as a ZIP at all.
	KindInvalidArchive Kind = "invalid_archive"
	// KindCorruptArchive means the container parsed but a member failed verification.
	KindCorruptArchive Kind = "corrupt_archive"
	KindIO             Kind = "io"
	KindUnexpected     Kind = "unexpected"
)

// Error wraps an underlying error with the operation, kind and path involved.
type Error struct {
	Op   string
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds an *Error.
func New(op string, kind Kind, path string, err error) *Error {
	return &Error{Op: op, Kind: kind, Path: path, Err: err}
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or KindUnexpected when err is not an *Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnexpected
}

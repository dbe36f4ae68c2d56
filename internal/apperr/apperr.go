// Package apperr classifies pipeline failures by the stage that produced them.
//
// The HTTP boundary only exposes a message, but callers and tests can recover
// the kind with KindOf.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies which stage an error came from.
type Kind int

const (
	KindUnknown Kind = iota
	KindInput
	KindAcquisition
	KindRecognition
	KindTranslation
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindAcquisition:
		return "acquisition"
	case KindRecognition:
		return "recognition"
	case KindTranslation:
		return "translation"
	default:
		return "unknown"
	}
}

// Error is a classified error. Op names the failing operation, e.g. "download".
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and operation name. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Input is shorthand for an input validation error built from a message.
func Input(op, format string, args ...any) error {
	return &Error{Kind: KindInput, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

package storage

import (
	"errors"
	"fmt"
)

// Kind classifies storage failures so callers can map them without knowing
// which backend produced them.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindValidation  Kind = "validation"
	KindUnavailable Kind = "unavailable"
	KindCorrupt     Kind = "corrupt"
	KindInternal    Kind = "internal"
)

// Sentinel errors, one per kind. Every *Error matches its kind's sentinel
// with errors.Is.
var (
	ErrNotFound    = errors.New("record not found")
	ErrConflict    = errors.New("unique constraint violation")
	ErrValidation  = errors.New("invalid input")
	ErrUnavailable = errors.New("storage unavailable")
	ErrCorrupt     = errors.New("corrupt data")
	ErrInternal    = errors.New("storage failure")
)

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	case KindValidation:
		return ErrValidation
	case KindUnavailable:
		return ErrUnavailable
	case KindCorrupt:
		return ErrCorrupt
	default:
		return ErrInternal
	}
}

// Error is a typed storage failure
type Error struct {
	Kind       Kind
	Op         string
	Collection string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Collection != "" {
		msg = fmt.Sprintf("%s %s: %s", e.Op, e.Collection, msg)
	} else if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func newError(kind Kind, op, collection string, err error) *Error {
	return &Error{Kind: kind, Op: op, Collection: collection, Err: err}
}

// Invalid wraps err as a validation failure raised before reaching storage.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return newError(KindValidation, "validate", "", err)
}

// Invalidf formats a validation failure
func Invalidf(format string, args ...any) error {
	return Invalid(fmt.Errorf(format, args...))
}

// KindOf reports the kind of err. Errors that did not originate in the
// storage layer are KindInternal; nil has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	for _, k := range []Kind{KindNotFound, KindConflict, KindValidation, KindUnavailable, KindCorrupt} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return KindInternal
}

// Package errdefs classifies discovery failures so callers can decide
// between aborting a run and degrading a single record.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind is the failure class.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindConnectivity
	KindProtocol
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConnectivity:
		return "connectivity"
	case KindProtocol:
		return "protocol"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrConnectivity = errors.New("connectivity error")
	ErrProtocol     = errors.New("protocol error")
	ErrParse        = errors.New("parse error")
)

// Error carries a Kind, the failing operation and the cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrConnectivity:
		return e.Kind == KindConnectivity
	case ErrProtocol:
		return e.Kind == KindProtocol
	case ErrParse:
		return e.Kind == KindParse
	}
	return false
}

// Validationf builds a KindValidation error.
func Validationf(op, format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// Connectivity wraps err as KindConnectivity.
func Connectivity(op string, err error) error {
	return &Error{Kind: KindConnectivity, Op: op, Err: err}
}

// Protocol wraps err as KindProtocol.
func Protocol(op string, err error) error {
	return &Error{Kind: KindProtocol, Op: op, Err: err}
}

// Protocolf builds a KindProtocol error.
func Protocolf(op, format string, args ...interface{}) error {
	return &Error{Kind: KindProtocol, Op: op, Err: fmt.Errorf(format, args...)}
}

// Parsef builds a KindParse error.
func Parsef(op, format string, args ...interface{}) error {
	return &Error{Kind: KindParse, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

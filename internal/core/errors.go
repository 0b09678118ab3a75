package core

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so that transports can map it to a status.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidArgument
	KindNotFound
	KindConflict
	KindFailedPrecondition
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindFailedPrecondition:
		return "failed_precondition"
	default:
		return "internal"
	}
}

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrInternal           = &Error{Kind: KindInternal, Msg: "internal error"}
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument, Msg: "invalid argument"}
	ErrNotFound           = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrConflict           = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrFailedPrecondition = &Error{Kind: KindFailedPrecondition, Msg: "failed precondition"}
)

// Error is a classified domain error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// InvalidArgument builds a KindInvalidArgument error.
func InvalidArgument(format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflict builds a KindConflict error.
func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// FailedPrecondition builds a KindFailedPrecondition error.
func FailedPrecondition(format string, args ...any) error {
	return &Error{Kind: KindFailedPrecondition, Msg: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure.
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Plain validation failures returned by Validate methods; Invalid classifies them.
var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid entry type")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyMethod      = errors.New("empty payment method")
	ErrNoteTooLong      = errors.New("note too long (max 200 characters)")
	ErrReservedCategory = errors.New("reserved category")
)

// Invalid wraps a validation error as KindInvalidArgument, keeping the cause.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindInvalidArgument, Msg: "validation failed", Err: err}
}

package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping (HTTP status, realtime failure reason).
type Kind string

const (
	KindValidation         Kind = "validation"
	KindAuth               Kind = "auth"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindChannelUnavailable Kind = "channel_unavailable"
	KindResponder          Kind = "responder_failure"
	KindInternal           Kind = "internal"
)

// Error is the shared error type for server and client packages.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrValidation         = &Error{Kind: KindValidation, Message: "validation error"}
	ErrAuth               = &Error{Kind: KindAuth, Message: "authentication required"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrChannelUnavailable = &Error{Kind: KindChannelUnavailable, Message: "realtime channel is not open"}
	ErrResponder          = &Error{Kind: KindResponder, Message: "responder failure"}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func Auth(message string) *Error {
	return New(KindAuth, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func ChannelUnavailable(state string) *Error {
	return New(KindChannelUnavailable, fmt.Sprintf("realtime channel is %s", state))
}

func Responder(err error) *Error {
	return Wrap(KindResponder, "responder failure", err)
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

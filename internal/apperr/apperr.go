// Package apperr defines the single error taxonomy every dispatch-core
// operation returns, translated to the transport boundary in internal/httpapi.
package apperr

import "fmt"

// Kind is one of the stable error kinds from spec §4.10/§7.
type Kind string

const (
	Unauthenticated  Kind = "unauthenticated"
	InvalidArgument  Kind = "invalid_argument"
	NotFound         Kind = "not_found"
	Forbidden        Kind = "forbidden"
	ServiceDisabled  Kind = "service_disabled"
	Internal         Kind = "internal"
)

// Error is the tagged error value passed up through every package in
// internal/core, internal/trip, internal/matching, etc.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a tagged error with no details.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds a tagged error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches a field-level detail (e.g. "current_state": "accepted")
// and returns the same error for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = map[string]string{}
	}
	e.Details[key] = value
	return e
}

// Wrap tags an opaque underlying error (e.g. a Store failure) as internal,
// never leaking its text to the caller.
func Wrap(err error) *Error {
	return &Error{Kind: Internal, Message: "internal error", cause: err}
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, defaulting
// to Internal for anything else — the "unexpected exceptions become
// internal" rule from spec §7.
func KindOf(err error) Kind {
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return Internal
}

// As is a tiny local wrapper so callers don't need to import errors in
// addition to apperr in the common case.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

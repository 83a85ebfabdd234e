// Package apperr defines OrbitDock's error taxonomy: a small set of
// sentinel kinds that the HTTP and WebSocket transports map to status
// codes, wrapping an underlying cause with errors.Is/As support.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the small number of error categories OrbitDock surfaces
// to clients. Internal causes are never leaked past the Kind + Message.
type Kind string

const (
	KindInputMalformed     Kind = "input_malformed"
	KindUnauthorized       Kind = "unauthorized"
	KindSessionNotFound    Kind = "session_not_found"
	KindApprovalNotFound   Kind = "approval_not_found"
	KindConnectorFailure   Kind = "connector_failure"
	KindPersistenceFailure Kind = "persistence_failure"
	KindInternal           Kind = "internal"
)

// Error is OrbitDock's error type. Cause is optional context for logs;
// Message is safe to return to a client as-is.
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

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error carrying cause as context.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf extracts the Kind of err, defaulting to KindInternal for
// anything that is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

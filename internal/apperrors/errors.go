// Package apperrors defines the error taxonomy shared by the service and
// HTTP layers. Handlers translate the Kind to an HTTP status; services
// construct errors with the helpers below and wrap collaborator failures.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindInvalid
	KindLocked
	KindDeactivated
	KindStorage
)

// Error is the application error type carried across layers.
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

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error kind to the status the REST surface returns.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindUnauthenticated, KindDeactivated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalid:
		return http.StatusBadRequest
	case KindLocked:
		return http.StatusLocked
	case KindStorage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Unauthenticated(msg string) *Error { return newError(KindUnauthenticated, msg) }
func Forbidden(msg string) *Error       { return newError(KindForbidden, msg) }
func NotFound(msg string) *Error        { return newError(KindNotFound, msg) }
func Invalid(msg string) *Error         { return newError(KindInvalid, msg) }
func Locked(msg string) *Error          { return newError(KindLocked, msg) }
func Deactivated(msg string) *Error     { return newError(KindDeactivated, msg) }

// InvalidToken wraps a token verification failure. The cause stays attached
// for logging but is never surfaced to the caller.
func InvalidToken(err error) *Error {
	return &Error{Kind: KindUnauthenticated, Message: "invalid or expired token", Err: err}
}

// Storage wraps an object-store or collaborator I/O failure.
func Storage(msg string, err error) *Error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}

// Internal wraps an unclassified failure. The message surfaced to callers is
// generic; detail lives in the wrapped error.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// As extracts an *Error from err's chain, or nil.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	e := As(err)
	return e != nil && e.Kind == kind
}

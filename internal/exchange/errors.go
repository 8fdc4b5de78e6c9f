package exchange

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes failures so transports can map them to responses.
type ErrorKind string

const (
	// KindValidation indicates malformed or out-of-range input.
	KindValidation ErrorKind = "validation"

	// KindState indicates the operation is not permitted in the current event state.
	KindState ErrorKind = "state"

	// KindAuth indicates an admin secret mismatch.
	KindAuth ErrorKind = "auth"

	// KindNotFound indicates an unknown participant token.
	KindNotFound ErrorKind = "not_found"

	// KindPersistence indicates the durable write failed and the mutation was rolled back.
	KindPersistence ErrorKind = "persistence"

	// KindStartup indicates unreadable configuration or store contents on boot.
	// It is the only kind allowed to terminate the process.
	KindStartup ErrorKind = "startup"
)

// Error is the typed error returned by exchange operations.
//
// Error values compare equal under errors.Is when their kinds match, so
// callers can test against the exported sentinels:
//
//	if errors.Is(err, exchange.ErrState) { ... }
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Message is a human-readable description safe to show to callers.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrState       = &Error{Kind: KindState}
	ErrAuth        = &Error{Kind: KindAuth}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrPersistence = &Error{Kind: KindPersistence}
	ErrStartup     = &Error{Kind: KindStartup}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError creates an Error with the given kind and message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates an Error that wraps an underlying cause.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsState returns true if err is a state error.
func IsState(err error) bool { return KindOf(err) == KindState }

// IsAuth returns true if err is an auth error.
func IsAuth(err error) bool { return KindOf(err) == KindAuth }

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsPersistence returns true if err is a persistence error.
func IsPersistence(err error) bool { return KindOf(err) == KindPersistence }

// IsStartup returns true if err is a startup error.
func IsStartup(err error) bool { return KindOf(err) == KindStartup }

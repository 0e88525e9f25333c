package sqlerr

import (
	"errors"
	"fmt"
)

// Kind categorizes persistence errors.
type Kind string

const (
	// KindPersistence is the catch-all for engine errors that match no other rule.
	KindPersistence Kind = "PERSISTENCE"

	// KindConstraintViolation indicates an integrity constraint failed (SQLSTATE class 23).
	KindConstraintViolation Kind = "CONSTRAINT_VIOLATION"

	// KindDeadlock indicates the engine aborted the statement to resolve a deadlock.
	KindDeadlock Kind = "DEADLOCK"

	// KindTooManyRows indicates a single-record query returned more than one row.
	KindTooManyRows Kind = "TOO_MANY_ROWS"

	// KindConfiguration indicates a missing or invalid database registration.
	KindConfiguration Kind = "CONFIGURATION"

	// KindContract indicates the API was used in a way its state machine forbids,
	// e.g. committing a rolled-back transaction.
	KindContract Kind = "CONTRACT"
)

// Error is the categorized error returned by every persistence operation.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Message is a human-readable description.
	Message string

	// SQLState is the five character state reported by the engine, if any.
	SQLState string

	// VendorCode is the engine specific error number, if any.
	VendorCode int

	// Err is the original error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.SQLState != "" {
		return fmt.Sprintf("%s: %s (sqlstate=%s)", e.Kind, msg, e.SQLState)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the original error.
func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels of the same Kind, so errors.Is(err, ErrDeadlock) works
// for any deadlock error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrPersistence         = &Error{Kind: KindPersistence}
	ErrConstraintViolation = &Error{Kind: KindConstraintViolation}
	ErrDeadlock            = &Error{Kind: KindDeadlock}
	ErrTooManyRows         = &Error{Kind: KindTooManyRows}
	ErrConfiguration       = &Error{Kind: KindConfiguration}
	ErrContract            = &Error{Kind: KindContract}
)

// New creates an Error without an underlying cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsDeadlock returns true if err is a deadlock error.
// Uses errors.As to handle wrapped errors.
func IsDeadlock(err error) bool { return KindOf(err) == KindDeadlock }

// IsConstraintViolation returns true if err is a constraint violation.
func IsConstraintViolation(err error) bool { return KindOf(err) == KindConstraintViolation }

// IsTooManyRows returns true if err is a cardinality violation.
func IsTooManyRows(err error) bool { return KindOf(err) == KindTooManyRows }

// IsConfiguration returns true if err is a configuration error.
func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }

// IsContract returns true if err is an API contract violation.
func IsContract(err error) bool { return KindOf(err) == KindContract }

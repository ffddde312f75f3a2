// Package apperr defines the typed errors returned by the workflow services.
//
// An Error carries a Kind (how transports should treat it), a Reason (which
// named condition it is) and a human-readable Message. errors.Is matches on
// Reason, so an error rebuilt with a more specific message still matches its
// sentinel.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	KindNotFound     Kind = "NotFound"
	KindConflict     Kind = "Conflict"
	KindInvalidState Kind = "InvalidState"
	KindValidation   Kind = "Validation"
	KindForbidden    Kind = "Forbidden"
	KindUnauthorized Kind = "Unauthorized"
	KindRateLimited  Kind = "RateLimited"
	KindUnexpected   Kind = "Unexpected"
)

// Error is the single error type surfaced by services.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Reason.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Reason == "" {
		return false
	}
	return e.Reason == t.Reason
}

// WithMessage returns a copy of e with a different message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// New builds an error of the given kind without a named reason.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Validation builds a validation error enumerating per-field problems.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Reason: "ValidationFailed", Message: message, Fields: fields}
}

// Forbidden builds a permission error.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Reason: "Forbidden", Message: message}
}

// Unauthorized builds an identity error.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Reason: "Unauthorized", Message: message}
}

// Unexpected wraps an infrastructure failure.
func Unexpected(op string, err error) *Error {
	return &Error{Kind: KindUnexpected, Reason: "Unexpected", Message: op, Err: err}
}

// KindOf returns the Kind of err, or KindUnexpected for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// Named conditions.
var (
	ErrJobNotFound         = &Error{Kind: KindNotFound, Reason: "JobNotFound", Message: "job not found"}
	ErrApplicationNotFound = &Error{Kind: KindNotFound, Reason: "ApplicationNotFound", Message: "application not found"}
	ErrRecordNotFound      = &Error{Kind: KindNotFound, Reason: "RecordNotFound", Message: "check-in record not found"}
	ErrAssignmentNotFound  = &Error{Kind: KindNotFound, Reason: "AssignmentNotFound", Message: "assignment not found"}
	ErrUserNotFound        = &Error{Kind: KindNotFound, Reason: "UserNotFound", Message: "user not found"}

	ErrDuplicateApplication  = &Error{Kind: KindConflict, Reason: "DuplicateApplication", Message: "an application for this job already exists"}
	ErrAlreadyCheckedInToday = &Error{Kind: KindConflict, Reason: "AlreadyCheckedInToday", Message: "already checked in to this job today; only one check-in per job per day is allowed"}
	ErrAssignmentConflict    = &Error{Kind: KindConflict, Reason: "AssignmentConflict", Message: "assignment was created concurrently; retry"}
	ErrAlreadyCheckedOut     = &Error{Kind: KindConflict, Reason: "AlreadyCheckedOut", Message: "already checked out"}

	ErrNotAssigned      = &Error{Kind: KindInvalidState, Reason: "NotAssigned", Message: "not assigned to this job"}
	ErrInvalidTimeRange = &Error{Kind: KindInvalidState, Reason: "InvalidTimeRange", Message: "check-out time is earlier than check-in time"}
	ErrInvalidDecision  = &Error{Kind: KindInvalidState, Reason: "InvalidDecision", Message: "applications can only be decided as Approved or Rejected"}
	ErrJobNotOpen       = &Error{Kind: KindInvalidState, Reason: "JobNotOpen", Message: "job is not open for applications"}
	ErrAlreadyOpen      = &Error{Kind: KindInvalidState, Reason: "AlreadyOpen", Message: "job is already open"}
	ErrAlreadyClosed    = &Error{Kind: KindInvalidState, Reason: "AlreadyClosed", Message: "job is already closed"}
	ErrJobExpired       = &Error{Kind: KindInvalidState, Reason: "JobExpired", Message: "job end date has passed; extend the end date first"}
	ErrJobInactive      = &Error{Kind: KindInvalidState, Reason: "JobInactive", Message: "job is inactive"}

	ErrRateLimited = &Error{Kind: KindRateLimited, Reason: "RateLimited", Message: "rate limit exceeded"}
)

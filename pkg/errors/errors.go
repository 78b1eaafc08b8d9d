package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound   = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict   = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal   = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// ErrConfiguration flags a schedule whose settings cannot be resolved,
	// e.g. a weekly frequency with zero active weekdays.
	ErrConfiguration = New("CONFIGURATION_ERROR", http.StatusUnprocessableEntity, "schedule configuration invalid")

	// ErrComputation guards internal arithmetic that should never fail on
	// validated input.
	ErrComputation = New("COMPUTATION_ERROR", http.StatusInternalServerError, "computation failed")

	// Schedule violations raised by the submission gate.
	ErrInactiveDay       = New("INACTIVE_DAY", http.StatusConflict, "date is not an active day on the schedule")
	ErrTypeNotAllowed    = New("TYPE_NOT_ALLOWED", http.StatusConflict, "activity type is not allowed by the schedule")
	ErrDailyLimitReached = New("DAILY_LIMIT_REACHED", http.StatusConflict, "daily activity limit reached")

	// ErrCacheMiss is an internal sentinel; it never reaches HTTP responses.
	ErrCacheMiss = New("CACHE_MISS", http.StatusInternalServerError, "cache miss")

	// ErrSequenceConflict signals a concurrent submission claimed the same
	// same-day sequence number; callers re-evaluate and retry.
	ErrSequenceConflict = New("SEQUENCE_CONFLICT", http.StatusConflict, "activity sequence already taken")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

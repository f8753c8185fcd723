package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrRideNotFound         = errors.New("ride not found")
	ErrRideFinished         = errors.New("ride already finished")
	ErrInvalidTransition    = errors.New("invalid ride status transition")
	ErrDriverNotFound       = errors.New("driver not found")
	ErrNoDriverAvailable    = errors.New("no driver available")
	ErrRideTypeNotFound     = errors.New("ride type not found")
	ErrPaymentNotFound      = errors.New("payment method not found")
	ErrCancelReasonNotFound = errors.New("cancellation reason not found")
	ErrRouteUnavailable     = errors.New("route unavailable")
)

// ValidationError is a user-facing rejection of a request. It is returned
// instead of an exception-style failure so callers can surface the message.
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Unwrap exposes the sentinel that triggered the rejection, if any.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// WrapValidationError builds a ValidationError caused by err.
func WrapValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Cause: err}
}

// IsValidationError reports whether err carries a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

package domain

import (
	"errors"
	"fmt"
)

// ValidationError is returned when input fails domain validation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError creates a ValidationError.
func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}

// InvalidStateError is returned when an operation is not legal in the aggregate's current state.
type InvalidStateError struct {
	From    string
	To      string
	Message string
}

func (e *InvalidStateError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// NewInvalidStateError creates an InvalidStateError for a rejected transition.
func NewInvalidStateError(from, to string) error {
	return &InvalidStateError{From: from, To: to}
}

// NewPreconditionError creates an InvalidStateError carrying a free-form reason.
func NewPreconditionError(msg string) error {
	return &InvalidStateError{Message: msg}
}

// ForbiddenError is returned when the caller may not act on the resource.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

// NewForbiddenError creates a ForbiddenError.
func NewForbiddenError(msg string) error {
	return &ForbiddenError{Message: msg}
}

// NotFoundError is returned when an entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError is returned on concurrent modification.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NewConflictError creates a ConflictError.
func NewConflictError(msg string) error {
	return &ConflictError{Message: msg}
}

// PaymentError wraps a failure reported by (or while reaching) the payment provider.
type PaymentError struct {
	Op  string
	Err error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment failed: %s: %v", e.Op, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// NewPaymentError creates a PaymentError for the given gateway operation.
func NewPaymentError(op string, err error) error {
	return &PaymentError{Op: op, Err: err}
}

// ReconciliationError marks a secondary write that failed after a primary write
// (usually a provider call) already succeeded.
type ReconciliationError struct {
	BookingID  string
	Transition string
	SubWrite   string
	Err        error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation required for booking %s (%s/%s): %v",
		e.BookingID, e.Transition, e.SubWrite, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// NewReconciliationError creates a ReconciliationError.
func NewReconciliationError(bookingID, transition, subWrite string, err error) error {
	return &ReconciliationError{BookingID: bookingID, Transition: transition, SubWrite: subWrite, Err: err}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsPaymentError reports whether err is (or wraps) a PaymentError.
func IsPaymentError(err error) bool {
	var target *PaymentError
	return errors.As(err, &target)
}

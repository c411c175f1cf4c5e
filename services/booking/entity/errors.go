package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrBookingNotFound  = errors.New("booking not found")
	ErrScheduleNotFound = errors.New("session not found")
	// ErrVersionConflict is returned by persistence when the stored version moved
	// on between read and write.
	ErrVersionConflict = errors.New("booking was modified concurrently, please retry")
	// ErrTopUpRefunded means a paid top-up could not be credited and its
	// payment was queued for a refund instead.
	ErrTopUpRefunded = errors.New("top-up could not be credited and will be refunded")
)

// ValidationError reports malformed or rule-violating input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// PackageConflict describes an already active package held by a child.
type PackageConflict struct {
	BookingID string
	Reference Reference
	ChildName string
	ExpiresAt *time.Time
}

// ExpiryLabel renders the expiry date for display.
func (c PackageConflict) ExpiryLabel() string {
	if c.ExpiresAt == nil {
		return "no expiry date"
	}
	return c.ExpiresAt.Format("2 January 2006")
}

// DuplicatePackageError is raised when a child already holds an active package.
type DuplicatePackageError struct {
	Conflicts []PackageConflict
}

func (e *DuplicatePackageError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s already has an active package (%s, expires %s)", c.ChildName, c.Reference, c.ExpiryLabel()))
	}
	if len(parts) == 0 {
		return "a participant already has an active package"
	}
	return strings.Join(parts, "; ") + ". Only one active package per child is allowed."
}

// References lists the conflicting booking references.
func (e *DuplicatePackageError) References() []Reference {
	out := make([]Reference, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		out = append(out, c.Reference)
	}
	return out
}

// ScheduleConflict is one proposed session that cannot be booked.
type ScheduleConflict struct {
	Date      string
	StartTime string
	EndTime   string
	Reason    string
}

func (c ScheduleConflict) String() string {
	return fmt.Sprintf("%s %s-%s: %s", c.Date, c.StartTime, c.EndTime, c.Reason)
}

// SchedulingConflictError lists the sessions that collide with existing bookings.
type SchedulingConflictError struct {
	Conflicts []ScheduleConflict
}

func (e *SchedulingConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return "the requested session conflicts with an existing booking"
	}
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, c.String())
	}
	return "scheduling conflict: " + strings.Join(parts, "; ")
}

// InvalidStateError reports an operation attempted from a forbidding state.
type InvalidStateError struct {
	Operation string
	Status    Status
	Message   string
}

func (e *InvalidStateError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("cannot %s a booking that is %s", e.Operation, e.Status)
}

// PaymentGatewayError wraps a failure of the external payment step.
type PaymentGatewayError struct {
	PaymentID string
	Message   string
	Err       error
}

func (e *PaymentGatewayError) Error() string {
	if e.Message != "" {
		return "payment failed: " + e.Message
	}
	if e.Err != nil {
		return "payment failed: " + e.Err.Error()
	}
	return "payment failed"
}

func (e *PaymentGatewayError) Unwrap() error { return e.Err }

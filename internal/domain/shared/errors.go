// Package shared contains common domain errors that are used across all
// domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Input errors
	ErrValidation        = errors.New("validation error")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrDataInconsistency = errors.New("data inconsistency")

	// External collaborator errors (store, text generation)
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrTimeout                 = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "attendance", "student", "report"
	Op      string // Operation that failed, e.g., "Upsert", "HoursNeeded"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Attendance domain errors
var (
	ErrRecordNotFound       = NewDomainError("attendance", "Find", ErrNotFound, "attendance record not found")
	ErrMissingStudentID     = NewDomainError("attendance", "Validate", ErrValidation, "missing required field: studentId")
	ErrMissingSubject       = NewDomainError("attendance", "Validate", ErrValidation, "missing required field: subject")
	ErrNegativeHours        = NewDomainError("attendance", "Validate", ErrValidation, "hours cannot be negative")
	ErrAttendedExceedsTotal = NewDomainError("attendance", "Validate", ErrDataInconsistency, "attended hours exceed total hours")
	ErrInvalidPeriod        = NewDomainError("attendance", "Validate", ErrValidation, "invalid period")
	ErrEmptyBatch           = NewDomainError("attendance", "BulkUpdate", ErrValidation, "attendance batch must be a non-empty list")
	ErrInvalidTarget        = NewDomainError("attendance", "HoursNeeded", ErrInvalidArgument, "target fraction must be in (0,1)")
	ErrUnknownStudent       = NewDomainError("attendance", "Upsert", ErrValidation, "unknown student")
)

// Student domain errors
var (
	ErrStudentNotFound      = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrStudentAlreadyExists = NewDomainError("student", "Create", ErrAlreadyExists, "student already exists")
	ErrInvalidStudent       = NewDomainError("student", "Validate", ErrValidation, "invalid student")
)

// External service errors
var (
	ErrStoreUnavailable    = NewDomainError("store", "Request", ErrCollaboratorUnavailable, "attendance store is unavailable")
	ErrNarratorUnavailable = NewDomainError("narrator", "Generate", ErrCollaboratorUnavailable, "text generation service is unavailable")
	ErrNarratorTimeout     = NewDomainError("narrator", "Generate", ErrTimeout, "text generation request timeout")
	ErrNarratorEmpty       = NewDomainError("narrator", "Generate", ErrCollaboratorUnavailable, "text generation returned no content")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidArgument checks if the error is an invalid argument error.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsDataInconsistency checks if the error reports inconsistent hour counts.
func IsDataInconsistency(err error) bool {
	return errors.Is(err, ErrDataInconsistency)
}

// IsCollaboratorUnavailable checks if the error is from an external collaborator.
func IsCollaboratorUnavailable(err error) bool {
	return errors.Is(err, ErrCollaboratorUnavailable) ||
		errors.Is(err, ErrTimeout)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCollaboratorUnavailable) ||
		errors.Is(err, ErrTimeout)
}

package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
)

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// Is delegates to the standard library for sentinel comparisons.
func Is(err, target error) bool { return errors.Is(err, target) }

// As delegates to the standard library for typed unwrapping.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// ValidationError reports a schema or shape violation: pattern mismatches,
// required fields, enum violations.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func Validation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// StateConflictReason identifies why a write was rejected for conflicting
// with existing state.
type StateConflictReason string

const (
	DuplicateMembership StateConflictReason = "DUPLICATE_MEMBERSHIP"
	SelfInheritance     StateConflictReason = "SELF_INHERITANCE"
	InheritanceCycle    StateConflictReason = "INHERITANCE_CYCLE"
	RoleProtected       StateConflictReason = "ROLE_PROTECTED"
	RoleInUse           StateConflictReason = "ROLE_IN_USE"
	SourceNotFound      StateConflictReason = "SOURCE_NOT_FOUND"
)

// StateConflictError reports a write rejected because of existing state:
// duplicate membership, role self-inheritance, deleting a protected or
// in-use role.
type StateConflictError struct {
	Reason  StateConflictReason
	Message string
}

func (e *StateConflictError) Error() string { return e.Message }

func StateConflict(reason StateConflictReason, message string) *StateConflictError {
	return &StateConflictError{Reason: reason, Message: message}
}

// DependencyError reports a grant blocked by missing prerequisite permissions.
type DependencyError struct {
	Missing []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("missing required permissions: %s", strings.Join(e.Missing, ", "))
}

// ConflictError reports a grant blocked by a mutually exclusive permission
// already held.
type ConflictError struct {
	Conflicting []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicts with existing permissions: %s", strings.Join(e.Conflicting, ", "))
}

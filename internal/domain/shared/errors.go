package shared

import (
	"errors"
	"fmt"
)

// ErrorCategory groups domain errors by how callers are expected to react to them.
type ErrorCategory string

const (
	// CategoryValidation is a user-correctable input problem.
	CategoryValidation ErrorCategory = "validation"
	// CategoryVAT blocks issuance while a buyer VAT identity is ambiguous.
	CategoryVAT ErrorCategory = "vat"
	// CategoryLimit blocks issuance because a plan limit was reached.
	CategoryLimit ErrorCategory = "limit"
	// CategoryImmutability is an attempted write to frozen invoice data.
	CategoryImmutability ErrorCategory = "immutability"
	// CategoryProvider is a failure of an external collaborator.
	CategoryProvider ErrorCategory = "provider"
	// CategoryConcurrency is a transient conflict on shared state.
	CategoryConcurrency ErrorCategory = "concurrency"
	// CategoryState is a disallowed lifecycle transition.
	CategoryState ErrorCategory = "state"
	// CategoryNotFound is a missing resource.
	CategoryNotFound ErrorCategory = "not_found"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Category ErrorCategory `json:"category,omitempty"`
	Field    string        `json:"field,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches on code so that wrapped copies compare equal to the sentinel values below.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:     code,
		Message:  message,
		Category: CategoryValidation,
	}
}

// NewCategorizedError creates a domain error with an explicit category.
func NewCategorizedError(category ErrorCategory, code, message string) *DomainError {
	return &DomainError{
		Code:     code,
		Message:  message,
		Category: category,
	}
}

// NewFieldError creates a validation error scoped to one input field.
func NewFieldError(field, code, message string) *DomainError {
	return &DomainError{
		Code:     code,
		Message:  message,
		Category: CategoryValidation,
		Field:    field,
	}
}

// WithMessage returns a copy of the error carrying a more specific message.
func (e *DomainError) WithMessage(format string, args ...any) *DomainError {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// WithField returns a copy of the error scoped to a field.
func (e *DomainError) WithField(field string) *DomainError {
	cp := *e
	cp.Field = field
	return &cp
}

// CategoryOf returns the category of the first DomainError in err's chain.
func CategoryOf(err error) (ErrorCategory, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Category, true
	}
	return "", false
}

// Common domain errors
var (
	ErrNotFound            = NewCategorizedError(CategoryNotFound, "NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewCategorizedError(CategoryConcurrency, "CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewCategorizedError(CategoryState, "INVALID_STATE", "Operation not allowed in current state")
	ErrImmutable           = NewCategorizedError(CategoryImmutability, "IMMUTABLE_FIELD", "Field cannot be modified after issuance")
	ErrProviderUnavailable = NewCategorizedError(CategoryProvider, "PROVIDER_UNAVAILABLE", "External provider unavailable")
)

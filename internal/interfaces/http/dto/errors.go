package dto

import (
	"net/http"

	"github.com/ledgerly/invoicing/internal/domain/shared"
)

// Transport-level error codes. Domain errors keep their own codes and are
// mapped to a status by category instead.
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeValidation is used when request binding or validation fails
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeNotFound is used when a route or resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeMissingSeller is used when the seller header is absent or malformed
	ErrCodeMissingSeller = "ERR_MISSING_SELLER"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	// ErrCodeServiceUnavailable is used when a dependency is not ready
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps transport-level error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeMissingSeller:      http.StatusBadRequest,
	ErrCodeRequestTooLarge:    http.StatusRequestEntityTooLarge,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
}

// CategoryHTTPStatus maps domain error categories to HTTP status codes.
// Issuance blocks (vat, limit) and frozen-field writes are conflicts with
// the current state of the invoice; transient failures ask the client to retry.
var CategoryHTTPStatus = map[shared.ErrorCategory]int{
	shared.CategoryValidation:   http.StatusUnprocessableEntity,
	shared.CategoryVAT:          http.StatusConflict,
	shared.CategoryLimit:        http.StatusConflict,
	shared.CategoryImmutability: http.StatusConflict,
	shared.CategoryState:        http.StatusConflict,
	shared.CategoryConcurrency:  http.StatusServiceUnavailable,
	shared.CategoryProvider:     http.StatusServiceUnavailable,
	shared.CategoryNotFound:     http.StatusNotFound,
}

// GetHTTPStatus returns the HTTP status code for a transport-level error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// StatusForCategory returns the HTTP status code for a domain error category.
// Uncategorized domain errors are treated as validation failures.
func StatusForCategory(category shared.ErrorCategory) int {
	if category == "" {
		return http.StatusUnprocessableEntity
	}
	if status, ok := CategoryHTTPStatus[category]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether clients may retry the request unchanged
func IsRetryable(category shared.ErrorCategory) bool {
	return category == shared.CategoryConcurrency || category == shared.CategoryProvider
}

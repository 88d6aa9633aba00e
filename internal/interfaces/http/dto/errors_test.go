package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerly/invoicing/internal/domain/shared"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusUnprocessableEntity},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeMissingSeller, http.StatusBadRequest},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestStatusForCategory(t *testing.T) {
	tests := []struct {
		category shared.ErrorCategory
		expected int
	}{
		{shared.CategoryValidation, http.StatusUnprocessableEntity},
		{shared.CategoryVAT, http.StatusConflict},
		{shared.CategoryLimit, http.StatusConflict},
		{shared.CategoryImmutability, http.StatusConflict},
		{shared.CategoryState, http.StatusConflict},
		{shared.CategoryConcurrency, http.StatusServiceUnavailable},
		{shared.CategoryProvider, http.StatusServiceUnavailable},
		{shared.CategoryNotFound, http.StatusNotFound},
		{"", http.StatusUnprocessableEntity},
		{"mystery", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusForCategory(tt.category))
		})
	}
}

func TestNewDomainErrorResponse(t *testing.T) {
	t.Run("wrapped VAT block keeps category in body", func(t *testing.T) {
		blocked := shared.NewCategorizedError(shared.CategoryVAT, "VAT_VALIDATION_REQUIRED", "Buyer VAT identifier is pending validation")
		err := fmt.Errorf("issue invoice: %w", blocked)

		resp, status, ok := NewDomainErrorResponse(err, "req-1")
		require.True(t, ok)
		assert.Equal(t, http.StatusConflict, status)
		assert.False(t, resp.Success)
		assert.Equal(t, "VAT_VALIDATION_REQUIRED", resp.Error.Code)
		assert.Equal(t, "vat", resp.Error.Category)
		assert.Equal(t, "req-1", resp.Error.RequestID)
		assert.False(t, resp.Error.Retryable)
	})

	t.Run("field error", func(t *testing.T) {
		err := shared.NewFieldError("currency", "INVALID_CURRENCY", "Unsupported currency")
		resp, status, ok := NewDomainErrorResponse(err, "")
		require.True(t, ok)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, "currency", resp.Error.Field)
	})

	t.Run("concurrency is retryable", func(t *testing.T) {
		resp, status, ok := NewDomainErrorResponse(shared.ErrConcurrencyConflict, "")
		require.True(t, ok)
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.True(t, resp.Error.Retryable)
	})

	t.Run("plain error is not a domain error", func(t *testing.T) {
		_, _, ok := NewDomainErrorResponse(errors.New("boom"), "")
		assert.False(t, ok)
	})
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-2", []ValidationDetail{
		{Field: "currency", Message: "Must be a supported ISO 4217 currency code"},
	})

	body, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, false, decoded["success"])
	errInfo := decoded["error"].(map[string]any)
	assert.Equal(t, ErrCodeValidation, errInfo["code"])
	assert.Equal(t, "validation", errInfo["category"])
	assert.Equal(t, "req-2", errInfo["request_id"])
	assert.Len(t, errInfo["details"], 1)
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	resp := NewSuccessResponseWithMeta([]int{1, 2}, 41, 2, 20)
	require.NotNil(t, resp.Meta)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Meta.TotalPages)

	empty := NewSuccessResponseWithMeta(nil, 0, 1, 0)
	assert.Equal(t, 0, empty.Meta.TotalPages)
}

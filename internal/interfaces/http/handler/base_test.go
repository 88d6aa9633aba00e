package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerly/invoicing/internal/domain/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/interfaces/http/dto"
	"github.com/ledgerly/invoicing/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantStatus    int
		wantCode      string
		wantCategory  string
		wantRetryable bool
	}{
		{
			name:         "validation",
			err:          shared.ErrInvalidInput.WithMessage("bad quantity"),
			wantStatus:   http.StatusUnprocessableEntity,
			wantCode:     "INVALID_INPUT",
			wantCategory: "validation",
		},
		{
			name:         "not found",
			err:          shared.ErrNotFound.WithMessage("Invoice not found"),
			wantStatus:   http.StatusNotFound,
			wantCode:     "NOT_FOUND",
			wantCategory: "not_found",
		},
		{
			name:         "frozen invoice",
			err:          invoicing.ErrInvoiceFrozen,
			wantStatus:   http.StatusConflict,
			wantCode:     "INVOICE_FROZEN",
			wantCategory: "immutability",
		},
		{
			name:          "concurrency is retryable",
			err:           fmt.Errorf("allocate: %w", shared.ErrConcurrencyConflict),
			wantStatus:    http.StatusServiceUnavailable,
			wantCode:      "CONCURRENCY_CONFLICT",
			wantCategory:  "concurrency",
			wantRetryable: true,
		},
		{
			name:       "plain error is hidden",
			err:        errors.New("pq: connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   dto.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Set(middleware.RequestIDKey, "req-1")

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantCategory, resp.Error.Category)
			assert.Equal(t, tt.wantRetryable, resp.Error.Retryable)
			assert.Equal(t, "req-1", resp.Error.RequestID)
			assert.NotContains(t, w.Body.String(), "pq:")
		})
	}
}

func TestBaseHandler_HandleError_Nil(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	h.HandleError(c, nil)

	assert.Equal(t, 0, w.Body.Len())
}

func TestBaseHandler_uuidParam(t *testing.T) {
	h := &BaseHandler{}
	id := uuid.New()

	t.Run("valid", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: id.String()}}

		got, ok := h.uuidParam(c, "id")
		assert.True(t, ok)
		assert.Equal(t, id, got)
	})

	t.Run("malformed", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}

		_, ok := h.uuidParam(c, "id")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrCodeBadRequest)
	})
}

func TestBaseHandler_sellerID_Missing(t *testing.T) {
	h := &BaseHandler{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := h.sellerID(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeMissingSeller)
}

func TestBaseHandler_bindOptionalJSON(t *testing.T) {
	type body struct {
		Reason string `json:"reason" binding:"max=5"`
	}
	h := &BaseHandler{}

	tests := []struct {
		name       string
		payload    string
		wantOK     bool
		wantReason string
		wantStatus int
	}{
		{name: "empty body", payload: "", wantOK: true, wantStatus: http.StatusOK},
		{name: "valid body", payload: `{"reason":"late"}`, wantOK: true, wantReason: "late", wantStatus: http.StatusOK},
		{name: "invalid body", payload: `{"reason":"far too long"}`, wantOK: false, wantReason: "far too long", wantStatus: http.StatusUnprocessableEntity},
		{name: "malformed body", payload: `{`, wantOK: false, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.payload))
			c.Request.Header.Set("Content-Type", "application/json")

			var b body
			ok := h.bindOptionalJSON(c, &b)
			if ok {
				c.Status(http.StatusOK)
			}

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantReason, b.Reason)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestPageOf(t *testing.T) {
	page, size := pageOf(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, size)

	page, size = pageOf(3, 50)
	assert.Equal(t, 3, page)
	assert.Equal(t, 50, size)
}

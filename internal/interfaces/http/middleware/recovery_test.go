package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ledgerly/invoicing/internal/infrastructure/logger"
	"github.com/ledgerly/invoicing/internal/interfaces/http/dto"
)

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(RequestID(), logger.AccessLog(zap.New(core)), Recovery())
	r.POST("/invoices/:id/issue", func(c *gin.Context) { panic("nil snapshot") })

	req := httptest.NewRequest(http.MethodPost, "/invoices/1/issue", nil)
	req.Header.Set(RequestIDHeader, "req-panic")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeInternal)
	assert.Contains(t, w.Body.String(), "req-panic")

	panics := recorded.FilterMessage("Panic recovered").All()
	require.Len(t, panics, 1)
	assert.Equal(t, "nil snapshot", panics[0].ContextMap()["panic"])
	assert.Equal(t, "req-panic", panics[0].ContextMap()["request_id"])

	access := recorded.FilterMessage("HTTP request").All()
	require.Len(t, access, 1)
	assert.Equal(t, zapcore.ErrorLevel, access[0].Level)
}

package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ledgerly/invoicing/internal/infrastructure/logger"
	"github.com/ledgerly/invoicing/internal/interfaces/http/dto"
)

// Recovery turns a handler panic into a 500 with the standard error body.
// The panic and its stack go to the request logger bound by AccessLog.
// Mount it after AccessLog so the response is still logged.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.L(c.Request.Context()).Error("Panic recovered",
				zap.String("panic", fmt.Sprint(rec)),
				zap.Stack("stacktrace"))
			SetErrorCode(c, dto.ErrCodeInternal)
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse(
				dto.ErrCodeInternal, "An unexpected error occurred", GetRequestID(c)))
		}()
		c.Next()
	}
}

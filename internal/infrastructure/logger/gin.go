package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Gin context keys set by the HTTP middleware before AccessLog runs
const (
	GinRequestIDKey = "request_id"
	GinSellerIDKey  = "seller_id"
)

// AccessLog binds a request logger to the request context, so logger.L
// returns it inside handlers and services, and writes one line per request
// once the handler chain returns. Server errors log at error level and
// client errors at warn.
func AccessLog(base *zap.Logger) gin.HandlerFunc {
	base = base.Named("http")
	return func(c *gin.Context) {
		began := time.Now()
		log := base.With(
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path))

		ctx := c.Request.Context()
		if id := c.GetString(GinRequestIDKey); id != "" {
			ctx, log = WithRequestID(ctx, log, id)
		} else {
			ctx = WithContext(ctx, log)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		fields := make([]zap.Field, 0, 8)
		fields = append(fields,
			zap.Int("status", status),
			zap.Duration("latency", time.Since(began)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()))
		if route := c.FullPath(); route != "" {
			fields = append(fields, zap.String("route", route))
		}
		if seller := c.GetString(GinSellerIDKey); seller != "" {
			fields = append(fields, zap.String("seller_id", seller))
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		level := zapcore.InfoLevel
		switch {
		case status >= 500:
			level = zapcore.ErrorLevel
		case status >= 400:
			level = zapcore.WarnLevel
		}
		WithTraceContext(c.Request.Context(), log).Log(level, "HTTP request", fields...)
	}
}

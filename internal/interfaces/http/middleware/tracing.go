// Package middleware provides the HTTP middleware of the invoicing API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ledgerly/invoicing/internal/infrastructure/telemetry"
)

// errorCodeKey holds the API error code a handler answered with
const errorCodeKey = "error_code"

// SetErrorCode records the API error code of the response for spans and
// request metrics.
func SetErrorCode(c *gin.Context, code string) {
	c.Set(errorCodeKey, code)
}

// Tracing opens a server span per request through otelgin and annotates it.
// An empty chain is returned when service is empty, which leaves requests
// untraced.
func Tracing(service string) gin.HandlersChain {
	if service == "" {
		return nil
	}
	return gin.HandlersChain{otelgin.Middleware(service), annotateSpan}
}

// annotateSpan tags the open span with the request id and seller before the
// handlers run, and with the answer after. Only 5xx answers fail the span;
// refusals such as a blocked issuance are answers.
func annotateSpan(c *gin.Context) {
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		c.Next()
		return
	}
	if id := GetRequestID(c); id != "" {
		span.SetAttributes(attribute.String("request_id", id))
	}
	if seller := claimedSeller(c); seller != "" {
		span.SetAttributes(attribute.String(telemetry.SpanAttrSellerID, seller))
	}

	c.Next()

	status := c.Writer.Status()
	span.SetAttributes(attribute.Int("http.status_code", status))
	if code := c.GetString(errorCodeKey); code != "" {
		span.SetAttributes(attribute.String("error.code", code))
	}
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

// claimedSeller is the resolved seller, else the seller header when it is
// a well-formed UUID. Arbitrary header text never reaches the span.
func claimedSeller(c *gin.Context) string {
	if id, ok := GetSellerID(c); ok {
		return id.String()
	}
	id, err := uuid.Parse(c.GetHeader(SellerHeader))
	if err != nil {
		return ""
	}
	return id.String()
}

package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ledgerly/invoicing/internal/infrastructure/telemetry"
)

// Profiling labels each request goroutine with its method, route pattern
// and resource so CPU and allocation profiles can be sliced per endpoint.
// Unmatched requests and the routes in skip run unlabelled.
func Profiling(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, route := range skip {
		skipped[route] = struct{}{}
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if _, ok := skipped[route]; ok || route == "" {
			c.Next()
			return
		}
		telemetry.Profile(c.Request.Context(), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		},
			telemetry.LabelMethod, c.Request.Method,
			telemetry.LabelRoute, route,
			telemetry.LabelResource, resourceOf(route))
	}
}

// resourceOf is the first literal path segment after the API version:
// "/api/v1/invoices/:id" is "invoices".
func resourceOf(route string) string {
	segments := strings.Split(strings.Trim(route, "/"), "/")
	if len(segments) >= 2 && segments[0] == "api" {
		segments = segments[2:]
	}
	for _, s := range segments {
		if !strings.HasPrefix(s, ":") && !strings.HasPrefix(s, "*") {
			return s
		}
	}
	return ""
}

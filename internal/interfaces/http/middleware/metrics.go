package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ledgerly/invoicing/internal/infrastructure/telemetry"
)

// attrErrorCode labels requests answered with an API error code
var attrErrorCode = attribute.Key("error.code")

// bodyBuckets spans an empty JSON object to a PDF document.
var bodyBuckets = []float64{128, 512, 2048, 8192, 32768, 131072, 524288, 2097152}

type serverInstruments struct {
	requests telemetry.Counter
	latency  telemetry.Histogram
	inBytes  telemetry.Histogram
	outBytes telemetry.Histogram
	inFlight telemetry.UpDownCounter
}

func newServerInstruments(meter metric.Meter) (*serverInstruments, error) {
	in := telemetry.NewInstruments(meter)
	si := &serverInstruments{
		requests: in.Counter("http_server_request_total", "HTTP requests answered", "{request}"),
		latency: in.Histogram("http_server_request_duration_seconds", "Time to answer a request", "s",
			telemetry.LatencyBuckets...),
		inBytes:  in.Histogram("http_server_request_size_bytes", "Request body size", "By", bodyBuckets...),
		outBytes: in.Histogram("http_server_response_size_bytes", "Response body size", "By", bodyBuckets...),
		inFlight: in.UpDownCounter("http_server_active_requests", "Requests being served", "{request}"),
	}
	return si, in.Err()
}

// HTTPMetrics meters every request on the pipeline. A nil or disabled
// pipeline makes it a pass-through.
func HTTPMetrics(m *telemetry.Meters) gin.HandlerFunc {
	if !m.Enabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(m.Meter("http.server"))
}

// HTTPMetricsWithMeter meters requests on meter. Requests are counted per
// route template, status, seller and error code; latency and body sizes
// are kept per route only.
func HTTPMetricsWithMeter(meter metric.Meter) gin.HandlerFunc {
	si, err := newServerInstruments(meter)
	if err != nil {
		return passThrough
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		began := time.Now()
		si.inFlight.Add(ctx, 1)
		defer si.inFlight.Add(ctx, -1)

		c.Next()

		route := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(routePattern(c)),
		}
		counted := append(route[:len(route):len(route)], telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))
		if seller := c.GetString(SellerIDKey); seller != "" {
			counted = append(counted, telemetry.AttrSellerID.String(seller))
		}
		if code := c.GetString(errorCodeKey); code != "" {
			counted = append(counted, attrErrorCode.String(code))
		}
		si.requests.Inc(ctx, counted...)
		si.latency.Since(ctx, began, route...)
		if n := c.Request.ContentLength; n > 0 {
			si.inBytes.Record(ctx, float64(n), route...)
		}
		if n := c.Writer.Size(); n > 0 {
			si.outBytes.Record(ctx, float64(n), route...)
		}
	}
}

// routePattern is the matched template, never the raw path
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}

func passThrough(c *gin.Context) { c.Next() }

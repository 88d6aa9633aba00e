package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// ServiceVersion is reported on every span, metric and log resource.
var ServiceVersion = "dev"

// flushTimeout bounds the final export of each signal pipeline
const flushTimeout = 10 * time.Second

// shutdowner is implemented by the trace, metric and log SDK providers
type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdownPipeline flushes and stops p. A nil p means the signal was disabled.
func shutdownPipeline(ctx context.Context, logger *zap.Logger, signal string, p shutdowner) error {
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		logger.Error("OTLP pipeline shutdown failed", zap.String("signal", signal), zap.Error(err))
		return fmt.Errorf("shutdown %s pipeline: %w", signal, err)
	}
	logger.Debug("OTLP pipeline stopped", zap.String("signal", signal))
	return nil
}

// newResource describes this process to the collector
func newResource(serviceName string) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}
	return res, nil
}

// samplerFor maps a ratio to a root sampler; out-of-range ratios clamp
func samplerFor(ratio float64) sdktrace.Sampler {
	if ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	if ratio <= 0 {
		return sdktrace.NeverSample()
	}
	return sdktrace.TraceIDRatioBased(ratio)
}

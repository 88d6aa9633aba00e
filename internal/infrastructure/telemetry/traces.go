// Package telemetry wires OpenTelemetry and Pyroscope for the invoicing
// service: OTLP traces, metrics and logs, gorm query tracing, business
// counters and continuous profiling.
package telemetry

import (
	"context"
	"fmt"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config points a signal pipeline at the OTLP collector.
type Config struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	ServiceName string
	// SamplingRatio applies to root spans only
	SamplingRatio float64
	// LinkProfiles tags spans with Pyroscope profile ids
	LinkProfiles bool
}

// Traces is the span pipeline. A disabled pipeline leaves the global no-op
// provider in place.
type Traces struct {
	sdk *sdktrace.TracerProvider
	log *zap.Logger
}

// StartTraces exports spans over OTLP/gRPC and installs the provider and the
// W3C propagators globally.
func StartTraces(ctx context.Context, cfg Config, log *zap.Logger) (*Traces, error) {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Traces{log: log}
	if !cfg.Enabled {
		log.Info("Span export disabled")
		return t, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp span exporter %s: %w", cfg.Endpoint, err)
	}
	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	// parent-based: a sampled upstream request keeps its whole trace
	t.sdk = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(samplerFor(cfg.SamplingRatio))),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(t.Provider(cfg.LinkProfiles))
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	log.Info("Span export enabled",
		zap.String("endpoint", cfg.Endpoint),
		zap.Float64("sampling_ratio", cfg.SamplingRatio),
		zap.Bool("profile_links", cfg.LinkProfiles))
	return t, nil
}

// Provider returns the SDK provider, wrapped to carry profile ids when
// linkProfiles is set. A disabled pipeline returns the global provider.
func (t *Traces) Provider(linkProfiles bool) trace.TracerProvider {
	if !t.Enabled() {
		return otel.GetTracerProvider()
	}
	if linkProfiles {
		return otelpyroscope.NewTracerProvider(t.sdk)
	}
	return t.sdk
}

func (t *Traces) Enabled() bool { return t != nil && t.sdk != nil }

// Shutdown flushes buffered spans.
func (t *Traces) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	return shutdownPipeline(ctx, t.log, "traces", t.sdk)
}

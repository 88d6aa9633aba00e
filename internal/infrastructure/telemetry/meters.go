package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const defaultPushInterval = time.Minute

// Meters is the metric pipeline. A disabled pipeline hands out meters of the
// global provider, which is a no-op unless something else installed one.
type Meters struct {
	sdk *sdkmetric.MeterProvider
	log *zap.Logger
}

// StartMetrics pushes readings to the collector every interval and installs
// the provider globally.
func StartMetrics(ctx context.Context, cfg Config, every time.Duration, log *zap.Logger) (*Meters, error) {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Meters{log: log}
	if !cfg.Enabled {
		log.Info("Metric export disabled")
		return m, nil
	}
	if every <= 0 {
		every = defaultPushInterval
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp metric exporter %s: %w", cfg.Endpoint, err)
	}
	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}
	m.sdk = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(every))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(m.sdk)

	log.Info("Metric export enabled", zap.String("endpoint", cfg.Endpoint), zap.Duration("interval", every))
	return m, nil
}

func (m *Meters) Enabled() bool { return m != nil && m.sdk != nil }

// Meter returns a named meter of the pipeline.
func (m *Meters) Meter(name string) metric.Meter {
	if !m.Enabled() {
		return otel.GetMeterProvider().Meter(name)
	}
	return m.sdk.Meter(name)
}

// Shutdown pushes the last readings.
func (m *Meters) Shutdown(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}
	return shutdownPipeline(ctx, m.log, "metrics", m.sdk)
}

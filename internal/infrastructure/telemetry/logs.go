package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logs ships zap records to the collector next to the spans they belong to.
type Logs struct {
	sdk   *sdklog.LoggerProvider
	scope string
	log   *zap.Logger
}

// StartLogs creates the OTLP log pipeline. A disabled pipeline is inert.
func StartLogs(ctx context.Context, cfg Config, log *zap.Logger) (*Logs, error) {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Logs{scope: cfg.ServiceName, log: log}
	if !cfg.Enabled {
		return l, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp log exporter %s: %w", cfg.Endpoint, err)
	}
	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}
	l.sdk = sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(l.sdk)

	log.Info("Log export enabled", zap.String("endpoint", cfg.Endpoint))
	return l, nil
}

func (l *Logs) Enabled() bool { return l != nil && l.sdk != nil }

// Attach tees base into the pipeline at base's own level. base comes back
// unchanged when the pipeline is disabled.
func (l *Logs) Attach(base *zap.Logger) *zap.Logger {
	if !l.Enabled() {
		return base
	}
	export := floorCore{
		Core:  otelzap.NewCore(l.scope, otelzap.WithLoggerProvider(l.sdk)),
		floor: zapcore.LevelOf(base.Core()),
	}
	return base.WithOptions(zap.WrapCore(func(local zapcore.Core) zapcore.Core {
		return zapcore.NewTee(local, export)
	}))
}

// Shutdown flushes buffered records.
func (l *Logs) Shutdown(ctx context.Context) error {
	if !l.Enabled() {
		return nil
	}
	return shutdownPipeline(ctx, l.log, "logs", l.sdk)
}

// floorCore drops entries below floor. The otelzap core accepts every level.
type floorCore struct {
	zapcore.Core
	floor zapcore.Level
}

func (c floorCore) Enabled(lvl zapcore.Level) bool {
	return c.floor.Enabled(lvl) && c.Core.Enabled(lvl)
}

func (c floorCore) With(fields []zapcore.Field) zapcore.Core {
	return floorCore{Core: c.Core.With(fields), floor: c.floor}
}

func (c floorCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.floor.Enabled(e.Level) {
		return c.Core.Check(e, ce)
	}
	return ce
}

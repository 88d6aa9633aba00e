package telemetry

import (
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultSlowQuery = 200 * time.Millisecond
	queryStartedKey  = "telemetry:query_started"
)

// QueryTracing configures statement spans.
type QueryTracing struct {
	// System is reported as db.system; defaults to postgresql
	System string
	// WithValues puts bound parameters on spans; development only
	WithValues bool
	// SlowAfter flags spans of statements that ran longer
	SlowAfter time.Duration
	// TracerProvider defaults to the global provider
	TracerProvider trace.TracerProvider
}

// TraceQueries installs otelgorm on db, so each statement gets a child span
// of the request span, and annotates those spans with the table, the rows
// touched and a slow flag.
func TraceQueries(db *gorm.DB, cfg QueryTracing, log *zap.Logger) error {
	if cfg.System == "" {
		cfg.System = "postgresql"
	}
	if cfg.SlowAfter <= 0 {
		cfg.SlowAfter = defaultSlowQuery
	}
	if log == nil {
		log = zap.NewNop()
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.System)}
	if !cfg.WithValues {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	// annotations land before otelgorm's after hook ends the span
	annotate := annotator(cfg.SlowAfter)
	cb := db.Callback()
	if err := errors.Join(
		cb.Create().Before("gorm:create").Register("telemetry:start_create", stampStart),
		cb.Create().After("gorm:create").Before("otel:after:create").Register("telemetry:annotate_create", annotate),
		cb.Query().Before("gorm:query").Register("telemetry:start_query", stampStart),
		cb.Query().After("gorm:query").Before("otel:after:select").Register("telemetry:annotate_query", annotate),
		cb.Update().Before("gorm:update").Register("telemetry:start_update", stampStart),
		cb.Update().After("gorm:update").Before("otel:after:update").Register("telemetry:annotate_update", annotate),
		cb.Delete().Before("gorm:delete").Register("telemetry:start_delete", stampStart),
		cb.Delete().After("gorm:delete").Before("otel:after:delete").Register("telemetry:annotate_delete", annotate),
		cb.Row().Before("gorm:row").Register("telemetry:start_row", stampStart),
		cb.Row().After("gorm:row").Before("otel:after:row").Register("telemetry:annotate_row", annotate),
		cb.Raw().Before("gorm:raw").Register("telemetry:start_raw", stampStart),
		cb.Raw().After("gorm:raw").Before("otel:after:raw").Register("telemetry:annotate_raw", annotate),
	); err != nil {
		return err
	}

	log.Info("Statement tracing enabled",
		zap.String("db_system", cfg.System),
		zap.Bool("with_values", cfg.WithValues),
		zap.Duration("slow_after", cfg.SlowAfter))
	return nil
}

func stampStart(db *gorm.DB) {
	db.InstanceSet(queryStartedKey, time.Now())
}

func annotator(slowAfter time.Duration) func(*gorm.DB) {
	return func(db *gorm.DB) {
		if db.Statement.Context == nil {
			return
		}
		span := trace.SpanFromContext(db.Statement.Context)
		if !span.IsRecording() {
			return
		}
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if db.Statement.Table != "" {
			span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
		}
		if err := db.Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		v, ok := db.InstanceGet(queryStartedKey)
		if !ok {
			return
		}
		if took := time.Since(v.(time.Time)); took > slowAfter {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", took.Milliseconds()))
			span.AddEvent("slow_query", trace.WithAttributes(
				attribute.Int64("threshold_ms", slowAfter.Milliseconds())))
		}
	}
}

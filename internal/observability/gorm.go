package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	gormSpanKey             = "rql:gorm:span"
	gormStartTimeKey        = "rql:gorm:start"
	gormTimingStartKey      = "rql:gorm:timing_start"
	gormTimingCallbacksName = "rql_server_timing"
)

// RegisterGORMCallbacks registers GORM callbacks for database query tracing.
// This should be called after GORM is initialized and observability is configured.
func RegisterGORMCallbacks(db *gorm.DB, cfg *Config) error {
	if cfg == nil || cfg.TracerProvider == nil || !cfg.EnableDetailedDBTracing {
		return nil
	}

	tracer := cfg.Tracer()

	if err := db.Callback().Query().Before("gorm:query").Register("rql:before_query", func(db *gorm.DB) {
		startSpan(db, tracer, "db.query")
	}); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register("rql:after_query", func(db *gorm.DB) {
		endSpan(db, tracer, cfg, "SELECT")
	}); err != nil {
		return err
	}

	if err := db.Callback().Row().Before("gorm:row").Register("rql:before_row", func(db *gorm.DB) {
		startSpan(db, tracer, "db.row")
	}); err != nil {
		return err
	}
	if err := db.Callback().Row().After("gorm:row").Register("rql:after_row", func(db *gorm.DB) {
		endSpan(db, tracer, cfg, "ROW")
	}); err != nil {
		return err
	}

	return nil
}

// RegisterServerTimingCallbacks registers GORM callbacks that add the duration
// of every query to the request's database time accumulator, reported as the
// "db" metric of the Server-Timing header.
func RegisterServerTimingCallbacks(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register(gormTimingCallbacksName+":before_query", beforeTiming); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register(gormTimingCallbacksName+":after_query", afterTiming); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register(gormTimingCallbacksName+":before_row", beforeTiming); err != nil {
		return err
	}
	if err := db.Callback().Row().After("gorm:row").Register(gormTimingCallbacksName+":after_row", afterTiming); err != nil {
		return err
	}
	return nil
}

func beforeTiming(db *gorm.DB) {
	db.InstanceSet(gormTimingStartKey, time.Now())
}

func afterTiming(db *gorm.DB) {
	startTimeVal, ok := db.InstanceGet(gormTimingStartKey)
	if !ok {
		return
	}

	startTime, ok := startTimeVal.(time.Time)
	if !ok {
		return
	}

	if db.Statement != nil && db.Statement.Context != nil {
		AddDBTime(db.Statement.Context, time.Since(startTime))
	}
}

func startSpan(db *gorm.DB, tracer *Tracer, spanName string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracer.StartSpan(ctx, spanName,
		attribute.String("db.system", db.Dialector.Name()),
	)

	db.Statement.Context = ctx
	db.InstanceSet(gormSpanKey, span)
	db.InstanceSet(gormStartTimeKey, time.Now())
}

func endSpan(db *gorm.DB, tracer *Tracer, cfg *Config, operation string) {
	spanVal, ok := db.InstanceGet(gormSpanKey)
	if !ok {
		return
	}

	span, ok := spanVal.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if db.Statement != nil {
		if tableName := db.Statement.Table; tableName != "" {
			span.SetAttributes(attribute.String("db.sql.table", tableName))
		}
		span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))
	}

	if db.Error != nil {
		tracer.RecordError(span, db.Error)
	}

	if startTimeVal, ok := db.InstanceGet(gormStartTimeKey); ok {
		if startTime, ok := startTimeVal.(time.Time); ok {
			cfg.Metrics().RecordDBQuery(db.Statement.Context, operation, time.Since(startTime))
		}
	}
}

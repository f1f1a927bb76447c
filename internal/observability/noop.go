package observability

import (
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// NewNoopTracer creates a tracer that does nothing.
func NewNoopTracer() *Tracer {
	return &Tracer{
		tracer:      tracenoop.NewTracerProvider().Tracer(""),
		serviceName: "",
	}
}

// NewNoopMetrics creates metrics that do nothing.
func NewNoopMetrics() *Metrics {
	meter := noop.NewMeterProvider().Meter("")
	m := &Metrics{}

	// Note: noop meter never returns errors, but we must check them to satisfy the linter.
	m.buildDuration, _ = meter.Float64Histogram("rql.build.duration")       //nolint:errcheck
	m.buildCount, _ = meter.Int64Counter("rql.build.count")                 //nolint:errcheck
	m.errorCount, _ = meter.Int64Counter("rql.error.count")                 //nolint:errcheck
	m.cacheLookups, _ = meter.Int64Counter("rql.parse_cache.lookups")       //nolint:errcheck
	m.dbQueryDuration, _ = meter.Float64Histogram("rql.db.query.duration") //nolint:errcheck

	return m
}

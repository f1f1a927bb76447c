package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the RQL-specific metric instruments.
type Metrics struct {
	buildDuration   metric.Float64Histogram
	buildCount      metric.Int64Counter
	errorCount      metric.Int64Counter
	cacheLookups    metric.Int64Counter
	dbQueryDuration metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with the given MeterProvider.
func NewMetrics(mp metric.MeterProvider) *Metrics {
	meter := mp.Meter(MeterName)
	m := &Metrics{}

	// Note: errors from meter instrument creation are unlikely in practice
	// and would only occur with invalid parameters. We use explicit checks
	// to satisfy the linter while continuing with partial metrics on error.
	var err error

	m.buildDuration, err = meter.Float64Histogram(
		"rql.build.duration",
		metric.WithDescription("Duration of RQL query builds in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.buildDuration, _ = meter.Float64Histogram("rql.build.duration")
	}

	m.buildCount, err = meter.Int64Counter(
		"rql.build.count",
		metric.WithDescription("Total number of RQL query builds"),
		metric.WithUnit("{build}"),
	)
	if err != nil {
		m.buildCount, _ = meter.Int64Counter("rql.build.count")
	}

	m.errorCount, err = meter.Int64Counter(
		"rql.error.count",
		metric.WithDescription("Total number of failed RQL query builds"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.errorCount, _ = meter.Int64Counter("rql.error.count")
	}

	m.cacheLookups, err = meter.Int64Counter(
		"rql.parse_cache.lookups",
		metric.WithDescription("Parse cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		m.cacheLookups, _ = meter.Int64Counter("rql.parse_cache.lookups")
	}

	m.dbQueryDuration, err = meter.Float64Histogram(
		"rql.db.query.duration",
		metric.WithDescription("Duration of database queries in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		m.dbQueryDuration, _ = meter.Float64Histogram("rql.db.query.duration")
	}

	return m
}

// RecordBuild records metrics for a completed build. errorKind is empty for
// successful builds.
func (m *Metrics) RecordBuild(ctx context.Context, model string, duration time.Duration, errorKind string) {
	attrs := metric.WithAttributes(ModelAttr(model))
	m.buildDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.buildCount.Add(ctx, 1, attrs)
	if errorKind != "" {
		m.errorCount.Add(ctx, 1, metric.WithAttributes(ModelAttr(model), ErrorKindAttr(errorKind)))
	}
}

// RecordCacheLookup records a parse cache hit or miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(CacheHitAttr(hit)))
}

// RecordDBQuery records metrics for a database query.
func (m *Metrics) RecordDBQuery(ctx context.Context, operation string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("db.operation", operation))
	m.dbQueryDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

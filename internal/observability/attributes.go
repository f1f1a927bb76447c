// Package observability provides OpenTelemetry-based instrumentation for RQL
// query compilation.
//
// It supports distributed tracing, metrics collection, and enhanced structured logging.
//
// All observability features are opt-in. When not configured, no-op implementations
// are used with zero performance overhead.
package observability

import "go.opentelemetry.io/otel/attribute"

// Instrumentation identity constants
const (
	// TracerName is the instrumentation name for tracing.
	TracerName = "github.com/nlstn/go-rql"
	// MeterName is the instrumentation name for metrics.
	MeterName = "github.com/nlstn/go-rql"
)

// RQL semantic attribute keys following OpenTelemetry conventions.
const (
	AttrModel       = "rql.model"
	AttrQuery       = "rql.query"
	AttrExpressions = "rql.expressions"
	AttrCacheHit    = "rql.cache.hit"
	AttrErrorKind   = "rql.error.kind"
)

// Log field keys for structured logging with trace context.
const (
	LogFieldModel       = "rql.model"
	LogFieldQuery       = "rql.query"
	LogFieldExpressions = "rql.expressions"
	LogFieldTraceID     = "trace_id"
	LogFieldSpanID      = "span_id"
	LogFieldDuration    = "duration_ms"
	LogFieldError       = "error"
)

// ModelAttr creates an attribute for the model a query is built for.
func ModelAttr(name string) attribute.KeyValue {
	return attribute.String(AttrModel, name)
}

// QueryAttr creates an attribute for the raw RQL text.
func QueryAttr(query string) attribute.KeyValue {
	return attribute.String(AttrQuery, query)
}

// ExpressionsAttr creates an attribute for the number of compiled expressions.
func ExpressionsAttr(n int) attribute.KeyValue {
	return attribute.Int(AttrExpressions, n)
}

// CacheHitAttr creates an attribute for a parse cache lookup result.
func CacheHitAttr(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// ErrorKindAttr creates an attribute for the kind of a failed build.
func ErrorKindAttr(kind string) attribute.KeyValue {
	return attribute.String(AttrErrorKind, kind)
}

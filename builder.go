package rql

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nlstn/go-rql/internal/observability"
	"github.com/nlstn/go-rql/internal/parser"
	"go.opentelemetry.io/otel/trace"
)

// Builder compiles RQL text into native queries of a backend.
// A Builder is safe for concurrent use.
type Builder[Q, C any] struct {
	backend  Backend[Q, C]
	hooks    Hooks
	logger   *slog.Logger
	cache    *ParseCache
	obs      *observability.Config
	handlers [numComparisons]func(Session[Q, C], string, any) (C, error)
}

// NewBuilder returns a builder over backend.
func NewBuilder[Q, C any](backend Backend[Q, C], opts ...Option) *Builder[Q, C] {
	cfg := newConfig(opts)
	obs := observability.NewConfig(cfg.obs...)
	obs.Initialize()
	return &Builder[Q, C]{
		backend:  backend,
		hooks:    cfg.hooks,
		logger:   cfg.logger,
		cache:    cfg.cache,
		obs:      obs,
		handlers: comparisonHandlers[Q, C](),
	}
}

// Backend returns the backend the builder was created with.
func (b *Builder[Q, C]) Backend() Backend[Q, C] {
	return b.backend
}

// BuildQuery compiles text starting from the backend's initial query.
func (b *Builder[Q, C]) BuildQuery(ctx context.Context, text string) (Q, error) {
	return b.build(ctx, text, b.backend.InitialQuery())
}

// BuildQueryFrom compiles text on top of initial.
func (b *Builder[Q, C]) BuildQueryFrom(ctx context.Context, text string, initial Q) (Q, error) {
	return b.build(ctx, text, initial)
}

func (b *Builder[Q, C]) build(ctx context.Context, text string, initial Q) (Q, error) {
	var zero Q
	model := b.backend.Model()
	start := time.Now()

	ctx, span := b.obs.Tracer().StartBuild(ctx, model, text)
	defer span.End()
	logger := observability.LoggerWithTrace(ctx, b.logger)

	query, n, err := b.compile(ctx, text, initial, span)
	duration := time.Since(start)
	b.obs.Metrics().RecordBuild(ctx, model, duration, ErrorKind(err))
	if err != nil {
		b.obs.Tracer().RecordError(span, err)
		logger.DebugContext(ctx, "rql build failed",
			slog.String(observability.LogFieldModel, model),
			slog.String(observability.LogFieldQuery, text),
			slog.Any(observability.LogFieldError, err))
		return zero, err
	}
	span.SetAttributes(observability.ExpressionsAttr(n))
	logger.DebugContext(ctx, "rql build",
		slog.String(observability.LogFieldModel, model),
		slog.String(observability.LogFieldQuery, text),
		slog.Int(observability.LogFieldExpressions, n),
		slog.Float64(observability.LogFieldDuration, float64(duration.Microseconds())/1000))
	return query, nil
}

func (b *Builder[Q, C]) compile(ctx context.Context, text string, query Q, span trace.Span) (Q, int, error) {
	var zero Q

	parsed, err := b.parse(ctx, text, span)
	if err != nil {
		return zero, 0, err
	}

	session := b.backend.NewSession(b.hooks.resolve)
	algebra := &sessionAlgebra[Q, C]{session: session, hooks: b.hooks, handlers: &b.handlers}
	expressions, err := Transform[C](parsed, algebra)
	if err != nil {
		return zero, 0, err
	}

	for _, expr := range expressions {
		switch e := expr.(type) {
		case FilterExpression[C]:
			query, err = session.ApplyFilter(query, e)
		case OrderByExpression:
			for _, field := range e.Fields {
				if err = b.hooks.validateOrdering(field.Path); err != nil {
					return zero, 0, err
				}
			}
			query, err = session.ApplyOrderBy(query, e)
		}
		if err != nil {
			return zero, 0, err
		}
	}

	query, err = session.ApplyJoins(query)
	if err != nil {
		return zero, 0, err
	}
	return query, len(expressions), nil
}

func (b *Builder[Q, C]) parse(ctx context.Context, text string, span trace.Span) (*parser.Query, error) {
	if b.cache == nil {
		return parser.Parse(text)
	}
	parsed, hit, err := b.cache.Parse(text)
	if err == nil {
		span.SetAttributes(observability.CacheHitAttr(hit))
		b.obs.Metrics().RecordCacheLookup(ctx, hit)
	}
	return parsed, err
}

// ErrorKind names the sentinel of err, as used in metric attributes and
// machine-readable error responses. It returns "" for nil and "other" for
// errors of no known kind.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	kinds := []struct {
		kind error
		name string
	}{
		{ErrRuleDefinition, "rule_definition"},
		{ErrSyntax, "syntax"},
		{ErrUnknownField, "unknown_field"},
		{ErrAmbiguousField, "ambiguous_field"},
		{ErrOperatorNotAllowed, "operator_not_allowed"},
		{ErrOrderingNotAllowed, "ordering_not_allowed"},
		{ErrRelationshipComparison, "relationship_comparison"},
		{ErrInvalidValue, "invalid_value"},
		{ErrUnsupportedType, "unsupported_type"},
	}
	for _, k := range kinds {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "other"
}

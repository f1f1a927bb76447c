package rql

import (
	"log/slog"

	"github.com/nlstn/go-rql/internal/observability"
	"github.com/nlstn/go-rql/internal/parser"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ParseCache is a bounded cache of parsed RQL text, safe for concurrent use.
type ParseCache = parser.Cache

// NewParseCache returns a parse cache holding up to capacity entries.
func NewParseCache(capacity int) *ParseCache {
	return parser.NewCache(capacity)
}

type config struct {
	logger  *slog.Logger
	hooks   Hooks
	cache   *ParseCache
	noCache bool
	obs     []observability.Option
}

// Option configures a Builder.
type Option func(*config)

// WithLogger sets the logger used for build diagnostics. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithHooks installs alias resolution and validation hooks.
func WithHooks(hooks Hooks) Option {
	return func(c *config) {
		c.hooks = hooks
	}
}

// WithTracerProvider enables a span per build.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		c.obs = append(c.obs, observability.WithTracerProvider(tp))
	}
}

// WithMeterProvider enables build and parse cache metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) {
		c.obs = append(c.obs, observability.WithMeterProvider(mp))
	}
}

// WithParseCache replaces the process-wide parse cache.
func WithParseCache(cache *ParseCache) Option {
	return func(c *config) {
		c.cache = cache
		c.noCache = cache == nil
	}
}

// WithoutParseCache parses every query from scratch.
func WithoutParseCache() Option {
	return func(c *config) {
		c.cache = nil
		c.noCache = true
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.cache == nil && !cfg.noCache {
		cfg.cache = parser.DefaultCache()
	}
	return cfg
}

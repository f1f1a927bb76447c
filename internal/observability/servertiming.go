package observability

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	servertiming "github.com/mitchellh/go-server-timing"
)

// ServerTimingMetric wraps the server-timing library's Metric type.
type ServerTimingMetric struct {
	metric *servertiming.Metric
}

// Stop stops the timing metric.
func (m *ServerTimingMetric) Stop() {
	if m != nil && m.metric != nil {
		m.metric.Stop()
	}
}

// StartServerTiming starts a server-timing metric with the given name.
// If the context doesn't contain timing info, returns a no-op metric.
func StartServerTiming(ctx context.Context, name string) *ServerTimingMetric {
	timing := servertiming.FromContext(ctx)
	if timing == nil {
		return &ServerTimingMetric{}
	}

	return &ServerTimingMetric{
		metric: timing.NewMetric(name).Start(),
	}
}

// StartServerTimingWithDesc starts a server-timing metric with the given name and description.
// If the context doesn't contain timing info, returns a no-op metric.
func StartServerTimingWithDesc(ctx context.Context, name, description string) *ServerTimingMetric {
	timing := servertiming.FromContext(ctx)
	if timing == nil {
		return &ServerTimingMetric{}
	}

	return &ServerTimingMetric{
		metric: timing.NewMetric(name).WithDesc(description).Start(),
	}
}

type dbTimeKey struct{}

// WithDBTimeAccumulator returns a context that accumulates database time
// reported by the GORM server-timing callbacks.
func WithDBTimeAccumulator(ctx context.Context) context.Context {
	return context.WithValue(ctx, dbTimeKey{}, new(atomic.Int64))
}

// AddDBTime adds d to the context's database time accumulator, if any.
func AddDBTime(ctx context.Context, d time.Duration) {
	if acc, ok := ctx.Value(dbTimeKey{}).(*atomic.Int64); ok {
		acc.Add(int64(d))
	}
}

// DBTime returns the accumulated database time of the context.
func DBTime(ctx context.Context) time.Duration {
	if acc, ok := ctx.Value(dbTimeKey{}).(*atomic.Int64); ok {
		return time.Duration(acc.Load())
	}
	return 0
}

// ServerTimingMiddleware adds a Server-Timing header to every response. The
// accumulated database time is reported as the "db" metric.
func ServerTimingMiddleware(next http.Handler) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithDBTimeAccumulator(r.Context())
		next.ServeHTTP(&dbTimingWriter{ResponseWriter: w, ctx: ctx}, r.WithContext(ctx))
	})
	return servertiming.Middleware(inner, nil)
}

// dbTimingWriter records the "db" metric right before the header is written.
type dbTimingWriter struct {
	http.ResponseWriter
	ctx         context.Context
	wroteHeader bool
}

func (w *dbTimingWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		if timing := servertiming.FromContext(w.ctx); timing != nil {
			if d := DBTime(w.ctx); d > 0 {
				m := timing.NewMetric("db").WithDesc("database")
				m.Duration = d
			}
		}
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *dbTimingWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

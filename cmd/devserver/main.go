// Command devserver serves seeded sample data filtered with RQL.
//
// It uses an in-memory sqlite database unless RQL_DSN holds a postgres DSN,
// and listens on RQL_ADDR (default :8080).
//
//	GET  /users?q=eq(account.name,My Account)&order_by(-age)
//	GET  /accounts?q=any(users,eq(users.role,admin))
//	GET  /docs/users
//	POST /reseed
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nlstn/go-rql/internal/observability"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := run(log); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	addr := envOr("RQL_ADDR", ":8080")

	db, err := openDB(os.Getenv("RQL_DSN"))
	if err != nil {
		return err
	}
	if err := seedDatabase(db); err != nil {
		return err
	}

	// The global providers are no-ops until an SDK is installed.
	obs := observability.NewConfig(
		observability.WithServiceName("rql-devserver"),
		observability.WithTracerProvider(otel.GetTracerProvider()),
		observability.WithMeterProvider(otel.GetMeterProvider()),
		observability.WithDetailedDBTracing(),
	)
	obs.Initialize()
	if err := observability.RegisterGORMCallbacks(db, obs); err != nil {
		return err
	}
	if err := observability.RegisterServerTimingCallbacks(db); err != nil {
		return err
	}

	s, err := newServer(db, log, obs)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr, "users", "http://localhost"+addr+"/users?q=eq(active,true)")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openDB connects to postgres when dsn is set and to a fresh in-memory sqlite
// database otherwise.
func openDB(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if dsn != "" {
		return gorm.Open(postgres.Open(dsn), cfg)
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Every connection to :memory: is its own database.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

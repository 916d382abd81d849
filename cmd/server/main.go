package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/curriculum"
	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/notify"
	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/platform/cache"
	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/platform/config"
	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/platform/database"
	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/server"
	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/training"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	app, cleanup, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     app,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: the event feed keeps its connection open.
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "storage", cfg.Storage.Driver, "cache", cfg.Cache.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// setup wires storage, cache, events and the catalog into an HTTP handler.
// The returned cleanup releases every opened connection.
func setup(ctx context.Context, cfg *config.Config) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	hub := notify.NewHub(0)
	events := training.MultiEventLogger{hub}
	opts := []server.Option{server.WithEvents(hub)}

	var store training.Store = training.NewMemoryStore()
	if cfg.Storage.Driver == config.StoragePostgres {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting database: %w", err)
		}
		closers = append(closers, db.Close)

		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("migrating database: %w", err)
			}
			slog.Info("database schema applied")
		}

		pg, err := training.NewPostgresStore(db.Pool)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		store = pg
		events = append(events, training.NewPostgresEventLogger(db.Pool))
		opts = append(opts, server.WithCheck("database", db.HealthCheck))
	}

	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connecting cache: %w", err)
		}
		closers = append(closers, func() { _ = c.Close() })
		store = training.NewCachedStore(store, c, cfg.Cache.TTL)
		opts = append(opts, server.WithCheck("cache", c.HealthCheck))
	}

	if err := seedCatalog(ctx, cfg.CatalogPath, store); err != nil {
		cleanup()
		return nil, nil, err
	}

	svc := training.NewService(training.Config{Store: store, Events: events})
	return server.New(svc, opts...).Handler(), cleanup, nil
}

func seedCatalog(ctx context.Context, path string, w curriculum.CatalogWriter) error {
	loader, err := curriculum.NewLoader(path)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	if _, err := loader.Seed(ctx, w); err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}
	return nil
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

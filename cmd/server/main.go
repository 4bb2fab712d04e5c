package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumen-edu/progress-engine/internal/api"
	"github.com/lumen-edu/progress-engine/internal/catalog"
	"github.com/lumen-edu/progress-engine/internal/feed"
	"github.com/lumen-edu/progress-engine/internal/platform/cache"
	"github.com/lumen-edu/progress-engine/internal/platform/config"
	"github.com/lumen-edu/progress-engine/internal/platform/database"
	"github.com/lumen-edu/progress-engine/internal/progress"
	"github.com/lumen-edu/progress-engine/internal/report"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cat, err := catalog.NewCatalog(cfg.CatalogPath)
	if err != nil {
		slog.Error("failed to load module catalog", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}
	var (
		store  progress.Store
		events progress.EventLogger = progress.NopEventLogger{}
		ready  func(ctx context.Context) error
	)

	if cfg.HasDatabase() {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := progress.Migrate(ctx, db.Pool); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		pgStore, err := progress.NewPostgresStore(db.Pool)
		if err != nil {
			slog.Error("failed to create store", "error", err)
			os.Exit(1)
		}
		store = pgStore
		events = progress.NewPostgresEventLogger(db.Pool)
		ready = db.Pool.Ping
	} else {
		slog.Warn("no database configured, using in-memory store")
		store = progress.NewMemoryStore()
	}

	if cfg.HasCache() {
		c, err := cache.New(ctx, cfg.Cache)
		if err != nil {
			slog.Error("failed to connect to cache", "error", err)
			os.Exit(1)
		}
		defer c.Close()
		store = progress.NewCachedStore(store, c.Client)

		dbReady := ready
		ready = func(ctx context.Context) error {
			if dbReady != nil {
				if err := dbReady(ctx); err != nil {
					return err
				}
			}
			return c.HealthCheck(ctx)
		}
	}

	hub := feed.NewHub()
	engine := progress.NewEngine(progress.EngineConfig{
		Store:     store,
		Catalog:   cat,
		Events:    events,
		Publisher: hub,
	})

	handler := &api.Handler{
		Engine:     engine,
		Exporter:   report.NewExporter(engine, cat),
		Feed:       hub,
		ReadyCheck: ready,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

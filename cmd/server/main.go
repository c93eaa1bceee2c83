package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/crabnebula-dev/gitbutler/internal/broadcast"
	"github.com/crabnebula-dev/gitbutler/internal/commands"
	"github.com/crabnebula-dev/gitbutler/internal/database"
	"github.com/crabnebula-dev/gitbutler/internal/dispatch"
	"github.com/crabnebula-dev/gitbutler/internal/git"
	"github.com/crabnebula-dev/gitbutler/internal/httpserver"
	"github.com/crabnebula-dev/gitbutler/internal/metrics"
	"github.com/crabnebula-dev/gitbutler/internal/platform/config"
	"github.com/crabnebula-dev/gitbutler/internal/platform/logging"
	"github.com/crabnebula-dev/gitbutler/internal/platform/version"
	"github.com/crabnebula-dev/gitbutler/internal/watcher"
	"github.com/crabnebula-dev/gitbutler/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func runGracefulShutdown(srv *httpserver.Server, events *websocket.Handler, watchers *watcher.Registry) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := events.Shutdown(shutdownCtx); err != nil {
			slog.Error("Event stream shutdown error", "error", err)
		}
		if err := watchers.Close(); err != nil {
			slog.Error("Failed to stop watchers", "error", err)
		}

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *database.DB {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg.DatabasePath())
	if err != nil {
		slog.Error("Failed to open database", "path", cfg.DatabasePath(), "error", err)
		os.Exit(1)
	}

	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "version", version.Get().String(), "env", cfg.AppEnv, "data_dir", cfg.DataDir)

	reg := metrics.NewRegistry()
	m := metrics.NewSet(reg)

	db := setupDB(cfg)
	defer func() { _ = db.Close() }()

	hub := broadcast.NewHub(m.Hub)
	watchers := watcher.NewRegistry(watcher.NewFSSource(clock, cfg.WatcherDebounce), hub, m.Watcher)

	app := &commands.App{
		Projects: database.NewProjectRepo(db, clock, m.Database),
		Watchers: watchers,
		Git:      git.NewRunner(cfg.GitBinary),
	}

	dispatcher := dispatch.New(app, m.Dispatch)
	if err := dispatcher.RegisterAll(commands.Table()); err != nil {
		slog.Error("Failed to register commands", "error", err)
		os.Exit(1)
	}
	slog.Debug("Commands registered", "commands", dispatcher.Names())

	events := websocket.NewHandler(hub, websocket.Options{
		QueueLimit: cfg.SubscriberQueueLimit,
		Limits: websocket.NewConnectionLimits(websocket.LimitsConfig{
			MaxConnections:       cfg.MaxWebSocketConnections,
			MaxConnectionsPerIP:  cfg.MaxWebSocketConnectionsPerIP,
			ConnectionsPerSecond: cfg.WebSocketConnectionsPerSec,
			Burst:                cfg.WebSocketConnectionBurst,
		}, clock),
		Clock:   clock,
		Metrics: m.WebSocket,
	})

	srv := httpserver.NewServer(cfg.Addr(), dispatcher, events.Serve, httpserver.Options{
		Registry:    reg,
		HTTPMetrics: m.HTTP,
		HealthChecks: []httpserver.HealthCheck{
			{Name: "database", Check: db.HealthCheck},
		},
		Clock: clock,
	})

	done := runGracefulShutdown(srv, events, watchers)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}

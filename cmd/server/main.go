// Package main is the entry point for the catalog server. It loads
// configuration, establishes database connections, applies migrations,
// wires the product and media plugins, and starts the HTTP server. In
// development it can also run a derivative worker in-process.
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

	"github.com/keyxmakerx/catalog/internal/app"
	"github.com/keyxmakerx/catalog/internal/config"
	"github.com/keyxmakerx/catalog/internal/database"
	"github.com/keyxmakerx/catalog/internal/derivative"
	"github.com/keyxmakerx/catalog/internal/logging"
	"github.com/keyxmakerx/catalog/internal/plugins/media"
	"github.com/keyxmakerx/catalog/internal/queue"
	"github.com/keyxmakerx/catalog/internal/worker"
)

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.Setup(cfg)

	slog.Info("starting catalog",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
	)

	// --- Connect to MariaDB ---
	db, err := database.NewMariaDB(cfg.Database)
	if err != nil {
		slog.Error("failed to connect to MariaDB", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to MariaDB")

	if err := database.RunMigrations(db, cfg.MigrationsPath); err != nil {
		slog.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Connect to Redis ---
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to Redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer rdb.Close()
	slog.Info("connected to Redis")

	// --- Job queue ---
	redisOpt, err := queue.RedisOpt(cfg.Redis.URL)
	if err != nil {
		slog.Error("invalid Redis URL for queue", slog.Any("error", err))
		os.Exit(1)
	}
	queueClient := queue.NewClient(redisOpt, cfg.Queue)
	defer queueClient.Close()
	inspector := queue.NewInspector(redisOpt, cfg.Queue.Name)
	defer inspector.Close()

	// --- Create Application ---
	application := app.New(cfg, db, rdb, app.Jobs{
		Enqueuer: queueClient,
		DeadJobs: inspector,
	})
	if err := application.RegisterRoutes(); err != nil {
		slog.Error("failed to register routes", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Embedded worker (development convenience) ---
	var embedded *worker.Worker
	if cfg.Worker.Embedded {
		layout, err := media.NewLayout(cfg.Upload.Root)
		if err != nil {
			slog.Error("failed to prepare upload root", slog.Any("error", err))
			os.Exit(1)
		}
		proc := worker.NewProcessor(media.NewMediaRepository(db), derivative.NewGenerator(), layout, cfg.Worker.JobTimeout)
		embedded = worker.New(redisOpt, cfg.Worker, cfg.Queue, proc, logger)
		if err := embedded.Start(); err != nil {
			slog.Error("failed to start embedded worker", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// --- Graceful Shutdown ---
	// Listen for interrupt/term signals to drain connections cleanly.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		// Give in-flight requests 10 seconds to complete.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := application.Echo.Shutdown(ctx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
	}()

	// --- Start Server ---
	if err := application.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", slog.Any("error", err))
	}

	if embedded != nil {
		embedded.Stop()
	}
	slog.Info("server stopped")
}

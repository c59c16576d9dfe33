// Package main is the entry point for the derivative worker. It consumes
// derivative jobs from the queue, writes small/medium/large JPEGs next to
// each original and records their paths. Several instances may run against
// the same queue.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keyxmakerx/catalog/internal/config"
	"github.com/keyxmakerx/catalog/internal/database"
	"github.com/keyxmakerx/catalog/internal/derivative"
	"github.com/keyxmakerx/catalog/internal/logging"
	"github.com/keyxmakerx/catalog/internal/plugins/media"
	"github.com/keyxmakerx/catalog/internal/queue"
	"github.com/keyxmakerx/catalog/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.Setup(cfg)

	slog.Info("starting derivative worker",
		slog.String("env", cfg.Env),
		slog.String("queue", cfg.Queue.Name),
		slog.Int("concurrency", cfg.Worker.Concurrency),
	)

	db, err := database.NewMariaDB(cfg.Database)
	if err != nil {
		slog.Error("failed to connect to MariaDB", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	layout, err := media.NewLayout(cfg.Upload.Root)
	if err != nil {
		slog.Error("failed to prepare upload root", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpt, err := queue.RedisOpt(cfg.Redis.URL)
	if err != nil {
		slog.Error("invalid Redis URL for queue", slog.Any("error", err))
		os.Exit(1)
	}

	proc := worker.NewProcessor(media.NewMediaRepository(db), derivative.NewGenerator(), layout, cfg.Worker.JobTimeout)
	w := worker.New(redisOpt, cfg.Worker, cfg.Queue, proc, logger)
	if err := w.Start(); err != nil {
		slog.Error("failed to start worker", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Metrics endpoint ---
	metricsSrv := echo.New()
	metricsSrv.HideBanner = true
	metricsSrv.HidePort = true
	metricsSrv.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	metricsSrv.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		if err := metricsSrv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", slog.Any("error", err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(ctx); err != nil {
		slog.Error("metrics server forced shutdown", slog.Any("error", err))
	}
	slog.Info("worker stopped")
}

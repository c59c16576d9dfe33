package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hibiken/asynq"

	"github.com/keyxmakerx/catalog/internal/config"
	"github.com/keyxmakerx/catalog/internal/logging"
	"github.com/keyxmakerx/catalog/internal/metrics"
	"github.com/keyxmakerx/catalog/internal/queue"
)

// Worker owns an asynq server bound to the derivative queue. Start and Stop
// give callers (main, the embedded server mode, tests) an explicit
// lifecycle instead of process-exit hooks.
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux

	mu      sync.Mutex
	running bool
}

// New builds a worker. Nothing connects until Start.
func New(opt asynq.RedisConnOpt, wcfg config.WorkerConfig, qcfg config.QueueConfig, proc *Processor, logger *slog.Logger) *Worker {
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency:     wcfg.Concurrency,
		Queues:          map[string]int{qcfg.Name: 1},
		RetryDelayFunc:  queue.RetryDelay(qcfg.InitialBackoff, qcfg.MaxBackoff),
		ErrorHandler:    asynq.ErrorHandlerFunc(handleError),
		Logger:          logging.NewQueueLogger(logger),
		ShutdownTimeout: wcfg.ShutdownTimeout,
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeDerivatives, func(ctx context.Context, t *asynq.Task) error {
		err := proc.ProcessTask(ctx, t)
		if err == nil {
			metrics.DerivativeJobsTotal.WithLabelValues(metrics.OutcomeCompleted).Inc()
		}
		return err
	})

	return &Worker{srv: srv, mux: mux}
}

// Start begins pulling jobs in background goroutines and returns once the
// server is running.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("worker already running")
	}
	if err := w.srv.Start(w.mux); err != nil {
		return fmt.Errorf("starting derivative worker: %w", err)
	}
	w.running = true
	slog.Info("derivative worker started")
	return nil
}

// Stop stops pulling new jobs and waits up to the shutdown timeout for
// in-flight ones. Jobs still running at the deadline are handed back to the
// queue for redelivery.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.srv.Shutdown()
	w.running = false
	slog.Info("derivative worker stopped")
}

// handleError runs after every failed delivery.
func handleError(ctx context.Context, t *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	taskID, _ := asynq.GetTaskID(ctx)

	outcome := classifyOutcome(err, retried, maxRetry)
	metrics.DerivativeJobsTotal.WithLabelValues(outcome).Inc()

	attrs := []any{
		slog.String("task_id", taskID),
		slog.String("task_type", t.Type()),
		slog.Int("retried", retried),
		slog.Int("max_retry", maxRetry),
		slog.Any("error", err),
	}
	if outcome == metrics.OutcomeDead {
		slog.Error("derivative job moved to dead state", attrs...)
		return
	}
	slog.Warn("derivative job failed; will retry", attrs...)
}

// classifyOutcome decides whether a failed delivery will be retried or
// archived. retried counts earlier retries, so the delivery that just
// failed was attempt retried+1 of maxRetry+1.
func classifyOutcome(err error, retried, maxRetry int) string {
	if errors.Is(err, asynq.SkipRetry) || retried >= maxRetry {
		return metrics.OutcomeDead
	}
	return metrics.OutcomeRetry
}

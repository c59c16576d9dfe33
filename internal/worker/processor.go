// Package worker consumes derivative jobs. Each job reads one original,
// writes its small/medium/large JPEGs, and records their paths on the media
// row. Every step is safe to repeat, so duplicate delivery is harmless.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/keyxmakerx/catalog/internal/apperror"
	"github.com/keyxmakerx/catalog/internal/derivative"
	"github.com/keyxmakerx/catalog/internal/metrics"
	"github.com/keyxmakerx/catalog/internal/plugins/media"
	"github.com/keyxmakerx/catalog/internal/queue"
)

// MediaStore is the slice of the media repository the worker needs.
type MediaStore interface {
	FindByID(ctx context.Context, id string) (*media.Media, error)
	UpdateDerivatives(ctx context.Context, id string, d media.Derivatives) error
}

// Generator produces encoded derivatives for one original.
type Generator interface {
	Generate(ctx context.Context, srcPath string) ([]derivative.Output, error)
}

// Processor runs one derivative job.
type Processor struct {
	store      MediaStore
	gen        Generator
	layout     *media.Layout
	cleaner    *media.Cleaner
	jobTimeout time.Duration
}

// NewProcessor creates a processor. A zero jobTimeout leaves the delivery
// bounded only by the queue's own deadline.
func NewProcessor(store MediaStore, gen Generator, layout *media.Layout, jobTimeout time.Duration) *Processor {
	return &Processor{
		store:      store,
		gen:        gen,
		layout:     layout,
		cleaner:    media.NewCleaner(layout),
		jobTimeout: jobTimeout,
	}
}

// permanent marks err so asynq archives the task instead of retrying it.
// The original error stays matchable with errors.Is.
func permanent(err error) error {
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}

// ProcessTask is the asynq handler for queue.TypeDerivatives.
//
// Malformed payloads, paths outside the upload layout, missing or
// undecodable originals, and records deleted mid-job are permanent
// failures. Disk and database errors are returned as-is so the queue
// retries them with backoff.
func (p *Processor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	start := time.Now()

	payload, err := queue.ParseDerivativePayload(t)
	if err != nil {
		slog.Warn("rejecting derivative job", slog.Any("error", err))
		return permanent(err)
	}

	taskID, _ := asynq.GetTaskID(ctx)
	retried, _ := asynq.GetRetryCount(ctx)
	log := slog.With(
		slog.String("task_id", taskID),
		slog.String("media_id", payload.MediaID),
		slog.String("product_id", payload.ProductID),
		slog.Int("retried", retried),
	)

	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	// Validating source.
	productID, variant, fileName, err := p.layout.ParsePublicPath(payload.OriginalPath)
	if err != nil || variant != media.VariantOriginal || productID != payload.ProductID {
		log.Warn("original path does not match upload layout", slog.String("path", payload.OriginalPath))
		return permanent(fmt.Errorf("%w: original path %q", queue.ErrInvalidPayload, payload.OriginalPath))
	}

	if _, err := p.store.FindByID(ctx, payload.MediaID); err != nil {
		if isNotFound(err) {
			log.Info("media record gone before processing; dropping job")
			return permanent(err)
		}
		return fmt.Errorf("loading media record: %w", err)
	}

	// Generating derivatives.
	srcPath := p.layout.FilePath(productID, media.VariantOriginal, fileName)
	outputs, err := p.gen.Generate(ctx, srcPath)
	if err != nil {
		if errors.Is(err, derivative.ErrSourceNotFound) || errors.Is(err, derivative.ErrDecode) {
			log.Warn("derivative generation failed permanently", slog.Any("error", err))
			return permanent(err)
		}
		return fmt.Errorf("generating derivatives: %w", err)
	}

	// Every output is on disk before the record is touched.
	derived, written, err := p.writeOutputs(productID, fileName, outputs)
	if err != nil {
		return err
	}

	// Persisting paths.
	if err := p.store.UpdateDerivatives(ctx, payload.MediaID, derived); err != nil {
		if isNotFound(err) {
			p.cleaner.RemoveFiles(written)
			p.cleaner.PruneEmpty(productID)
			log.Info("media record deleted during processing; removed fresh derivatives")
			return permanent(err)
		}
		return fmt.Errorf("recording derivatives: %w", err)
	}

	elapsed := time.Since(start)
	metrics.DerivativeDuration.Observe(elapsed.Seconds())
	log.Info("derivatives generated", slog.Duration("elapsed", elapsed))
	return nil
}

// writeOutputs writes each derivative atomically under its variant
// directory and returns the public paths plus the absolute files written.
func (p *Processor) writeOutputs(productID, fileName string, outputs []derivative.Output) (media.Derivatives, []string, error) {
	var d media.Derivatives
	name := media.DerivativeName(fileName)
	written := make([]string, 0, len(outputs))

	for _, out := range outputs {
		abs := p.layout.FilePath(productID, out.Variant, name)
		if err := media.WriteFileAtomic(abs, out.Data, 0o644); err != nil {
			return d, written, fmt.Errorf("writing %s derivative: %w", out.Variant, err)
		}
		written = append(written, abs)

		public := p.layout.PublicPath(productID, out.Variant, name)
		switch out.Variant {
		case media.VariantSmall:
			d.Small = public
		case media.VariantMedium:
			d.Medium = public
		case media.VariantLarge:
			d.Large = public
		}
	}

	if d.Small == "" || d.Medium == "" || d.Large == "" {
		return d, written, fmt.Errorf("generator returned an incomplete derivative set (%d outputs)", len(outputs))
	}
	return d, written, nil
}

func isNotFound(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Code == http.StatusNotFound
}

package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/keyxmakerx/catalog/internal/apperror"
)

var errNoQueue = errors.New("derivative queue not configured")

// MediaService handles single-item media operations. Batch changes made
// while editing a product go through the products plugin instead.
type MediaService interface {
	Get(ctx context.Context, productID, mediaID string) (*Media, error)
	Delete(ctx context.Context, productID, mediaID string) error
	Reprocess(ctx context.Context, productID, mediaID string) (taskID string, err error)
}

// mediaService implements MediaService.
type mediaService struct {
	repo      MediaRepository
	cleaner   *Cleaner
	scheduler *Scheduler
}

// NewMediaService creates a new media service.
func NewMediaService(repo MediaRepository, cleaner *Cleaner, scheduler *Scheduler) MediaService {
	return &mediaService{repo: repo, cleaner: cleaner, scheduler: scheduler}
}

// Get returns a media item, scoped to its product.
func (s *mediaService) Get(ctx context.Context, productID, mediaID string) (*Media, error) {
	m, err := s.repo.FindByID(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if m.ProductID != productID {
		return nil, apperror.NewNotFound("media not found")
	}
	return m, nil
}

// Delete removes the files of a media item and then its record. If the
// process dies between the two steps the record survives with missing
// files, and calling Delete again finishes the job because missing files
// are tolerated.
func (s *mediaService) Delete(ctx context.Context, productID, mediaID string) error {
	m, err := s.Get(ctx, productID, mediaID)
	if err != nil {
		return err
	}

	if failed := s.cleaner.RemoveMediaFiles(m); failed > 0 {
		slog.Warn("media record deleted with leftover files",
			slog.String("media_id", m.ID),
			slog.Int("failed", failed),
		)
	}

	if err := s.repo.Delete(ctx, m.ID); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return apperror.NewInternal(fmt.Errorf("deleting media record: %w", err))
	}

	slog.Info("media deleted",
		slog.String("media_id", m.ID),
		slog.String("product_id", productID),
	)
	return nil
}

// Reprocess enqueues a fresh derivative job for an image. Used to recover
// items whose original enqueue failed or whose job ended up dead.
func (s *mediaService) Reprocess(ctx context.Context, productID, mediaID string) (string, error) {
	m, err := s.Get(ctx, productID, mediaID)
	if err != nil {
		return "", err
	}
	taskID, err := s.scheduler.ScheduleOne(ctx, m)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return "", err
		}
		return "", apperror.NewInternal(err)
	}
	slog.Info("derivative job re-enqueued",
		slog.String("media_id", m.ID),
		slog.String("task_id", taskID),
	)
	return taskID, nil
}

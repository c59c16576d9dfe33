package media

import (
	"context"
	"log/slog"

	"github.com/keyxmakerx/catalog/internal/apperror"
	"github.com/keyxmakerx/catalog/internal/metrics"
	"github.com/keyxmakerx/catalog/internal/queue"
)

// Scheduler hands committed image records to the derivative queue. Enqueue
// failures degrade to "original only" and never fail the caller's request.
type Scheduler struct {
	enqueuer queue.Enqueuer
}

// NewScheduler creates a scheduler. A nil enqueuer disables scheduling.
func NewScheduler(enqueuer queue.Enqueuer) *Scheduler {
	return &Scheduler{enqueuer: enqueuer}
}

// Schedule enqueues one derivative job per image in records and returns the
// number of jobs enqueued. Videos are skipped.
func (s *Scheduler) Schedule(ctx context.Context, records []Media) int {
	enqueued := 0
	for i := range records {
		m := &records[i]
		if m.IsVideo() {
			continue
		}
		if _, err := s.ScheduleOne(ctx, m); err != nil {
			slog.Warn("derivative job not enqueued; original will be shown until reprocessed",
				slog.String("media_id", m.ID),
				slog.String("product_id", m.ProductID),
				slog.Any("error", err),
			)
			continue
		}
		enqueued++
	}
	return enqueued
}

// ScheduleOne enqueues a job for a single image record and returns the task ID.
func (s *Scheduler) ScheduleOne(ctx context.Context, m *Media) (string, error) {
	if m.IsVideo() {
		return "", apperror.NewBadRequest("videos are stored as-is and have no derivatives")
	}
	if s.enqueuer == nil {
		metrics.EnqueueFailuresTotal.Inc()
		return "", apperror.NewInternal(errNoQueue)
	}
	taskID, err := s.enqueuer.EnqueueDerivatives(ctx, queue.DerivativePayload{
		ProductID:    m.ProductID,
		MediaID:      m.ID,
		OriginalPath: m.Original,
	})
	if err != nil {
		metrics.EnqueueFailuresTotal.Inc()
		return "", err
	}
	return taskID, nil
}

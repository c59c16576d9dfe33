package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/keyxmakerx/catalog/internal/config"
	"github.com/keyxmakerx/catalog/internal/metrics"
	"github.com/keyxmakerx/catalog/internal/plugins/media"
	"github.com/keyxmakerx/catalog/internal/queue"
)

var testQueue = config.QueueConfig{
	Name:           "media-test",
	MaxAttempts:    3,
	InitialBackoff: time.Second,
	MaxBackoff:     2 * time.Second,
}

// startWorker runs a Worker for f's processor against a fresh miniredis and
// stops it when the test ends.
func startWorker(t *testing.T, f *fixture) (*Worker, asynq.RedisConnOpt) {
	t.Helper()
	mr := miniredis.RunT(t)
	opt := asynq.RedisClientOpt{Addr: mr.Addr()}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := New(opt, config.WorkerConfig{Concurrency: 2, ShutdownTimeout: 2 * time.Second}, testQueue, f.proc, logger)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, opt
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWorker_ProcessesEnqueuedJob(t *testing.T) {
	f := newFixture(t, 1600, 1000, false)
	w, opt := startWorker(t, f)

	if err := w.Start(); err == nil {
		t.Error("expected second Start to fail while running")
	}

	client := queue.NewClient(opt, testQueue)
	defer client.Close()
	if _, err := client.EnqueueDerivatives(context.Background(), queue.DerivativePayload{
		ProductID:    "p1",
		MediaID:      "m1",
		OriginalPath: f.record.Original,
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitFor(t, 15*time.Second, "derivatives recorded", func() bool {
		rec, err := f.store.FindByID(context.Background(), "m1")
		return err == nil && rec.Small != nil && rec.Medium != nil && rec.Large != nil
	})

	for _, v := range []string{media.VariantSmall, media.VariantMedium, media.VariantLarge} {
		if got := widthOf(t, f.derivativePath(v)); got == 0 {
			t.Errorf("%s derivative has zero width", v)
		}
	}

	w.Stop()
	// A second Stop is a no-op.
	w.Stop()
}

// A job whose original vanished (a concurrent edit removed it) must land in
// the dead set on its first failure instead of burning retries.
func TestWorker_MissingSourceGoesStraightToDead(t *testing.T) {
	f := newFixture(t, 800, 600, false)
	f.store.mu.Lock()
	f.store.records["m2"] = &media.Media{
		ID:        "m2",
		ProductID: "p1",
		Kind:      media.KindImage,
		Original:  f.layout.PublicPath("p1", media.VariantOriginal, "gone.jpg"),
	}
	f.store.mu.Unlock()

	deadBefore := testutil.ToFloat64(metrics.DerivativeJobsTotal.WithLabelValues(metrics.OutcomeDead))
	_, opt := startWorker(t, f)

	client := queue.NewClient(opt, testQueue)
	defer client.Close()
	taskID, err := client.EnqueueDerivatives(context.Background(), queue.DerivativePayload{
		ProductID:    "p1",
		MediaID:      "m2",
		OriginalPath: f.layout.PublicPath("p1", media.VariantOriginal, "gone.jpg"),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	insp := queue.NewInspector(opt, testQueue.Name)
	defer insp.Close()

	var dead []queue.DeadJob
	waitFor(t, 15*time.Second, "job archived", func() bool {
		dead, err = insp.ListDead(1, 10)
		return err == nil && len(dead) == 1
	})

	if dead[0].TaskID != taskID {
		t.Errorf("expected dead task %s, got %s", taskID, dead[0].TaskID)
	}
	if dead[0].Retried != 0 {
		t.Errorf("expected no retries before archiving, got %d", dead[0].Retried)
	}
	if dead[0].Payload.MediaID != "m2" {
		t.Errorf("expected payload for m2, got %+v", dead[0].Payload)
	}
	if got := testutil.ToFloat64(metrics.DerivativeJobsTotal.WithLabelValues(metrics.OutcomeDead)); got != deadBefore+1 {
		t.Errorf("expected dead outcome counted once, got %v -> %v", deadBefore, got)
	}

	rec, _ := f.store.FindByID(context.Background(), "m2")
	if rec.Small != nil {
		t.Error("record must stay unprocessed")
	}
}

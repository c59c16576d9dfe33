package media

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/keyxmakerx/catalog/internal/apperror"
	"github.com/keyxmakerx/catalog/internal/queue"
)

// --- Mock Repository ---

// mockMediaRepo implements MediaRepository for testing.
type mockMediaRepo struct {
	findByIDFn          func(ctx context.Context, id string) (*Media, error)
	listByProductFn     func(ctx context.Context, productID string) ([]Media, error)
	listByProductsFn    func(ctx context.Context, productIDs []string) (map[string][]Media, error)
	createFn            func(ctx context.Context, m *Media) error
	updateDerivativesFn func(ctx context.Context, id string, d Derivatives) error
	deleteFn            func(ctx context.Context, id string) error
	insertRecordsFn     func(ctx context.Context, ex Execer, records []Media) error
	deleteRecordsFn     func(ctx context.Context, ex Execer, productID string, ids []string) (int64, error)
	deleteByProductFn   func(ctx context.Context, ex Execer, productID string) (int64, error)
}

func (m *mockMediaRepo) FindByID(ctx context.Context, id string) (*Media, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, apperror.NewNotFound("media not found")
}

func (m *mockMediaRepo) ListByProduct(ctx context.Context, productID string) ([]Media, error) {
	if m.listByProductFn != nil {
		return m.listByProductFn(ctx, productID)
	}
	return nil, nil
}

func (m *mockMediaRepo) ListByProducts(ctx context.Context, productIDs []string) (map[string][]Media, error) {
	if m.listByProductsFn != nil {
		return m.listByProductsFn(ctx, productIDs)
	}
	return map[string][]Media{}, nil
}

func (m *mockMediaRepo) Create(ctx context.Context, media *Media) error {
	if m.createFn != nil {
		return m.createFn(ctx, media)
	}
	return nil
}

func (m *mockMediaRepo) UpdateDerivatives(ctx context.Context, id string, d Derivatives) error {
	if m.updateDerivativesFn != nil {
		return m.updateDerivativesFn(ctx, id, d)
	}
	return nil
}

func (m *mockMediaRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockMediaRepo) InsertRecords(ctx context.Context, ex Execer, records []Media) error {
	if m.insertRecordsFn != nil {
		return m.insertRecordsFn(ctx, ex, records)
	}
	return nil
}

func (m *mockMediaRepo) DeleteRecords(ctx context.Context, ex Execer, productID string, ids []string) (int64, error) {
	if m.deleteRecordsFn != nil {
		return m.deleteRecordsFn(ctx, ex, productID, ids)
	}
	return int64(len(ids)), nil
}

func (m *mockMediaRepo) DeleteByProduct(ctx context.Context, ex Execer, productID string) (int64, error) {
	if m.deleteByProductFn != nil {
		return m.deleteByProductFn(ctx, ex, productID)
	}
	return 0, nil
}

// --- Mock Enqueuer ---

type mockEnqueuer struct {
	enqueued []queue.DerivativePayload
	err      error
}

func (m *mockEnqueuer) EnqueueDerivatives(_ context.Context, p queue.DerivativePayload) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.enqueued = append(m.enqueued, p)
	return "task-" + p.MediaID, nil
}

// assertAppError checks that err is an AppError with the expected HTTP status code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

func strPtr(s string) *string { return &s }

// processedImage writes an original plus three derivatives to disk and
// returns the matching record.
func processedImage(t *testing.T, l *Layout, productID, mediaID string) *Media {
	t.Helper()
	m := &Media{
		ID:        mediaID,
		ProductID: productID,
		Kind:      KindImage,
		Original:  l.PublicPath(productID, VariantOriginal, mediaID+".png"),
		Small:     strPtr(l.PublicPath(productID, VariantSmall, mediaID+".jpg")),
		Medium:    strPtr(l.PublicPath(productID, VariantMedium, mediaID+".jpg")),
		Large:     strPtr(l.PublicPath(productID, VariantLarge, mediaID+".jpg")),
	}
	for _, p := range m.Paths() {
		abs, err := l.Resolve(p)
		if err != nil {
			t.Fatal(err)
		}
		if err := WriteFileAtomic(abs, []byte(p), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func newTestService(t *testing.T, repo *mockMediaRepo, enq queue.Enqueuer) (MediaService, *Layout) {
	t.Helper()
	l := newTestLayout(t)
	return NewMediaService(repo, NewCleaner(l), NewScheduler(enq)), l
}

// --- Get Tests ---

func TestGet_WrongProductIsNotFound(t *testing.T) {
	repo := &mockMediaRepo{
		findByIDFn: func(_ context.Context, id string) (*Media, error) {
			return &Media{ID: id, ProductID: "other"}, nil
		},
	}
	svc, _ := newTestService(t, repo, nil)
	_, err := svc.Get(context.Background(), "p1", "m1")
	assertAppError(t, err, http.StatusNotFound)
}

// --- Delete Tests ---

func TestDelete_RemovesFilesThenRecord(t *testing.T) {
	repo := &mockMediaRepo{}
	svc, l := newTestService(t, repo, nil)
	m := processedImage(t, l, "p1", "m1")

	var filesGoneAtDelete bool
	repo.findByIDFn = func(_ context.Context, id string) (*Media, error) { return m, nil }
	repo.deleteFn = func(_ context.Context, id string) error {
		filesGoneAtDelete = true
		for _, p := range m.Paths() {
			abs, _ := l.Resolve(p)
			if _, err := os.Stat(abs); err == nil {
				filesGoneAtDelete = false
			}
		}
		return nil
	}

	if err := svc.Delete(context.Background(), "p1", "m1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !filesGoneAtDelete {
		t.Error("expected every file removed before the record delete")
	}
}

func TestDelete_ToleratesMissingFiles(t *testing.T) {
	l := newTestLayout(t)
	m := &Media{
		ID: "m1", ProductID: "p1", Kind: KindImage,
		Original: l.PublicPath("p1", VariantOriginal, "gone.png"),
		Small:    strPtr(l.PublicPath("p1", VariantSmall, "gone.jpg")),
	}
	deleted := false
	repo := &mockMediaRepo{
		findByIDFn: func(context.Context, string) (*Media, error) { return m, nil },
		deleteFn:   func(context.Context, string) error { deleted = true; return nil },
	}
	svc := NewMediaService(repo, NewCleaner(l), NewScheduler(nil))

	if err := svc.Delete(context.Background(), "p1", "m1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Error("record must be deleted even when files are already absent")
	}
}

// A crash between file removal and record deletion leaves a record with no
// files. Re-running Delete must finish the job.
func TestDelete_InterruptedThenRetried(t *testing.T) {
	repo := &mockMediaRepo{}
	svc, l := newTestService(t, repo, nil)
	m := processedImage(t, l, "p1", "m1")
	repo.findByIDFn = func(context.Context, string) (*Media, error) { return m, nil }

	calls := 0
	repo.deleteFn = func(context.Context, string) error {
		calls++
		if calls == 1 {
			return errors.New("connection reset")
		}
		return nil
	}

	err := svc.Delete(context.Background(), "p1", "m1")
	assertAppError(t, err, http.StatusInternalServerError)
	if n := countFiles(t, l.Root()); n != 0 {
		t.Fatalf("files should already be gone after the first attempt, found %d", n)
	}

	if err := svc.Delete(context.Background(), "p1", "m1"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 delete attempts, got %d", calls)
	}
}

func TestDelete_NotFound(t *testing.T) {
	svc, _ := newTestService(t, &mockMediaRepo{}, nil)
	assertAppError(t, svc.Delete(context.Background(), "p1", "missing"), http.StatusNotFound)
}

// --- Reprocess Tests ---

func TestReprocess_EnqueuesImage(t *testing.T) {
	m := &Media{ID: "m1", ProductID: "p1", Kind: KindImage, Original: "/uploads/products/p1/original/a.png"}
	repo := &mockMediaRepo{findByIDFn: func(context.Context, string) (*Media, error) { return m, nil }}
	enq := &mockEnqueuer{}
	svc, _ := newTestService(t, repo, enq)

	taskID, err := svc.Reprocess(context.Background(), "p1", "m1")
	if err != nil {
		t.Fatalf("Reprocess: %v", err)
	}
	if taskID != "task-m1" {
		t.Errorf("unexpected task id %s", taskID)
	}
	if len(enq.enqueued) != 1 || enq.enqueued[0].OriginalPath != m.Original {
		t.Errorf("unexpected enqueued payloads %+v", enq.enqueued)
	}
}

func TestReprocess_RejectsVideo(t *testing.T) {
	m := &Media{ID: "m1", ProductID: "p1", Kind: KindVideo, Original: "/uploads/products/p1/original/a.mp4"}
	repo := &mockMediaRepo{findByIDFn: func(context.Context, string) (*Media, error) { return m, nil }}
	enq := &mockEnqueuer{}
	svc, _ := newTestService(t, repo, enq)

	_, err := svc.Reprocess(context.Background(), "p1", "m1")
	assertAppError(t, err, http.StatusBadRequest)
	if len(enq.enqueued) != 0 {
		t.Error("videos must never be enqueued")
	}
}

func TestReprocess_QueueDownIsInternal(t *testing.T) {
	m := &Media{ID: "m1", ProductID: "p1", Kind: KindImage, Original: "/uploads/products/p1/original/a.png"}
	repo := &mockMediaRepo{findByIDFn: func(context.Context, string) (*Media, error) { return m, nil }}
	svc, _ := newTestService(t, repo, &mockEnqueuer{err: errors.New("dial tcp: refused")})

	_, err := svc.Reprocess(context.Background(), "p1", "m1")
	assertAppError(t, err, http.StatusInternalServerError)
}

// --- Scheduler Tests ---

func TestSchedule_SkipsVideosAndSurvivesEnqueueFailure(t *testing.T) {
	records := []Media{
		{ID: "img", ProductID: "p1", Kind: KindImage, Original: "/uploads/products/p1/original/a.png"},
		{ID: "vid", ProductID: "p1", Kind: KindVideo, Original: "/uploads/products/p1/original/b.mp4"},
	}

	enq := &mockEnqueuer{}
	if n := NewScheduler(enq).Schedule(context.Background(), records); n != 1 {
		t.Errorf("expected 1 job, got %d", n)
	}
	if len(enq.enqueued) != 1 || enq.enqueued[0].MediaID != "img" {
		t.Errorf("unexpected payloads %+v", enq.enqueued)
	}

	failing := &mockEnqueuer{err: errors.New("redis down")}
	if n := NewScheduler(failing).Schedule(context.Background(), records); n != 0 {
		t.Errorf("expected 0 jobs when queue is down, got %d", n)
	}
}

// --- Cleaner Tests ---

func TestRemoveProductTree(t *testing.T) {
	l := newTestLayout(t)
	processedImage(t, l, "p1", "m1")
	processedImage(t, l, "p2", "m2")
	c := NewCleaner(l)

	if err := c.RemoveProductTree("p1"); err != nil {
		t.Fatalf("RemoveProductTree: %v", err)
	}
	if _, err := os.Stat(l.ProductDir("p1")); !os.IsNotExist(err) {
		t.Error("expected p1 directory removed")
	}
	if _, err := os.Stat(filepath.Join(l.ProductDir("p2"), VariantOriginal, "m2.png")); err != nil {
		t.Error("other products must be untouched")
	}

	if err := c.RemoveProductTree("p1"); err != nil {
		t.Errorf("removing an absent tree should succeed, got %v", err)
	}
	if err := c.RemoveProductTree("../p2"); err == nil {
		t.Error("expected traversal to be rejected")
	}
}

func TestRemoveMediaFiles_CountsPathsOutsideLayout(t *testing.T) {
	c := NewCleaner(newTestLayout(t))
	m := &Media{ID: "m1", Original: "/etc/passwd"}
	if failed := c.RemoveMediaFiles(m); failed != 1 {
		t.Errorf("expected 1 failure, got %d", failed)
	}
}

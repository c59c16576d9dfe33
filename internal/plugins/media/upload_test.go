package media

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keyxmakerx/catalog/internal/config"
)

func testUploadConfig() config.UploadConfig {
	return config.UploadConfig{
		MaxImageSize:       10 * 1024 * 1024,
		MaxVideoSize:       100 * 1024 * 1024,
		MaxFilesPerRequest: 15,
	}
}

func newTestReceiver(t *testing.T) (*Receiver, *Layout) {
	t.Helper()
	l := newTestLayout(t)
	return NewReceiver(l, testUploadConfig()), l
}

func memUpload(name, contentType string, data []byte) Upload {
	return Upload{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// countFiles returns the number of regular files below root.
func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func TestValidate_RejectsUnsupportedType(t *testing.T) {
	r, _ := newTestReceiver(t)
	err := r.Validate([]Upload{memUpload("a.pdf", "application/pdf", []byte("%PDF"))})
	assertAppError(t, err, http.StatusBadRequest)
}

func TestValidate_RejectsTooManyFiles(t *testing.T) {
	r, _ := newTestReceiver(t)
	files := make([]Upload, 16)
	for i := range files {
		files[i] = memUpload("a.jpg", "image/jpeg", []byte("x"))
	}
	assertAppError(t, r.Validate(files), http.StatusBadRequest)
}

func TestValidate_OversizedVideoByDeclaredSize(t *testing.T) {
	r, l := newTestReceiver(t)
	u := memUpload("clip.mp4", "video/mp4", nil)
	u.Size = 150 * 1024 * 1024

	err := r.Validate([]Upload{u})
	assertAppError(t, err, http.StatusRequestEntityTooLarge)
	if !strings.Contains(err.Error(), "video exceeds 100 MB limit") {
		t.Errorf("unexpected message: %v", err)
	}
	if n := countFiles(t, l.Root()); n != 0 {
		t.Errorf("expected no files written, found %d", n)
	}
}

func TestValidate_ImageCeilingIsLowerThanVideo(t *testing.T) {
	r, _ := newTestReceiver(t)
	img := memUpload("big.png", "image/png", nil)
	img.Size = 11 * 1024 * 1024
	assertAppError(t, r.Validate([]Upload{img}), http.StatusRequestEntityTooLarge)

	vid := memUpload("big.mp4", "video/mp4", nil)
	vid.Size = 11 * 1024 * 1024
	if err := r.Validate([]Upload{vid}); err != nil {
		t.Errorf("11 MB video should pass, got %v", err)
	}
}

func TestStore_WritesOriginalUnderProduct(t *testing.T) {
	r, l := newTestReceiver(t)
	data := []byte("fake-png-bytes")

	sf, err := r.Store("p1", 0, memUpload("Photo.JPEG", "image/jpeg", data))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if !strings.HasPrefix(sf.Media.Original, "/uploads/products/p1/original/") {
		t.Errorf("unexpected public path %s", sf.Media.Original)
	}
	if !strings.HasSuffix(sf.Media.Original, ".jpg") {
		t.Errorf("expected .jpeg normalized to .jpg, got %s", sf.Media.Original)
	}
	if strings.Contains(sf.Media.Original, "Photo") {
		t.Error("caller file name must not be used for the stored name")
	}
	if sf.Media.Small != nil || sf.Media.Medium != nil || sf.Media.Large != nil {
		t.Error("derivatives must start null")
	}
	if sf.Media.Kind != KindImage {
		t.Errorf("expected image kind, got %s", sf.Media.Kind)
	}

	abs, _ := l.Resolve(sf.Media.Original)
	if abs != sf.AbsPath {
		t.Errorf("AbsPath %s does not match resolved %s", sf.AbsPath, abs)
	}
	got, err := os.ReadFile(sf.AbsPath)
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("stored bytes differ from upload")
	}
}

func TestStore_EnforcesActualByteCount(t *testing.T) {
	cfg := testUploadConfig()
	cfg.MaxImageSize = 8
	l := newTestLayout(t)
	r := NewReceiver(l, cfg)

	// Declared size lies; the stream is longer than the ceiling.
	u := memUpload("a.png", "image/png", []byte("0123456789"))
	u.Size = 4

	_, err := r.Store("p1", 0, u)
	assertAppError(t, err, http.StatusRequestEntityTooLarge)
	if n := countFiles(t, l.Root()); n != 0 {
		t.Errorf("expected no files left behind, found %d", n)
	}
}

func TestStoreAll_DiscardsEarlierFilesOnFailure(t *testing.T) {
	r, l := newTestReceiver(t)
	good := memUpload("a.png", "image/png", []byte("ok"))
	broken := Upload{
		Filename: "b.png", ContentType: "image/png", Size: 2,
		Open: func() (io.ReadCloser, error) { return nil, os.ErrPermission },
	}

	_, err := r.StoreAll("p1", 0, []Upload{good, broken})
	assertAppError(t, err, http.StatusInternalServerError)
	if n := countFiles(t, l.Root()); n != 0 {
		t.Errorf("expected batch rollback to remove originals, found %d files", n)
	}
}

func TestStoreAll_AssignsPositions(t *testing.T) {
	r, _ := newTestReceiver(t)
	stored, err := r.StoreAll("p1", 3, []Upload{
		memUpload("a.png", "image/png", []byte("a")),
		memUpload("b.mp4", "video/mp4", []byte("b")),
	})
	if err != nil {
		t.Fatalf("StoreAll: %v", err)
	}
	if stored[0].Media.Position != 3 || stored[1].Media.Position != 4 {
		t.Errorf("unexpected positions %d, %d", stored[0].Media.Position, stored[1].Media.Position)
	}
	if stored[1].Media.Kind != KindVideo {
		t.Errorf("expected video kind, got %s", stored[1].Media.Kind)
	}
	if stored[0].Media.ID == stored[1].Media.ID {
		t.Error("media IDs must be unique")
	}
}

func TestNormalizeExtension(t *testing.T) {
	tests := map[string]string{
		"photo.JPG":       ".jpg",
		"photo.jpeg":      ".jpg",
		"photo":           ".jpg",
		"clip.MOV":        ".mov",
		"archive.tar.gz":  ".gz",
		"weird.p h p":     ".php",
		"x.aaaaaaaaaaaaa": ".jpg",
		"trailingdot.":    ".jpg",
	}
	for in, want := range tests {
		if got := NormalizeExtension(in); got != want {
			t.Errorf("NormalizeExtension(%q) = %q, want %q", in, got, want)
		}
	}
}

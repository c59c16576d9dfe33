package media

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keyxmakerx/catalog/internal/apperror"
	"github.com/keyxmakerx/catalog/internal/config"
	"github.com/keyxmakerx/catalog/internal/metrics"
)

// Upload is one inbound file as declared by the caller. Size and
// ContentType are trusted only for validation; the stored byte count is
// enforced again while copying.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FromFileHeader adapts a multipart part to an Upload.
func FromFileHeader(fh *multipart.FileHeader) Upload {
	return Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// StoredFile is an original that has been written to disk but whose record
// may not be committed yet.
type StoredFile struct {
	Media   Media
	AbsPath string
}

// Receiver validates uploads and persists originals under the product's
// original/ directory. It never touches the database.
type Receiver struct {
	layout   *Layout
	maxImage int64
	maxVideo int64
	maxFiles int
}

// NewReceiver creates a receiver using the configured ceilings.
func NewReceiver(layout *Layout, cfg config.UploadConfig) *Receiver {
	return &Receiver{
		layout:   layout,
		maxImage: cfg.MaxImageSize,
		maxVideo: cfg.MaxVideoSize,
		maxFiles: cfg.MaxFilesPerRequest,
	}
}

// MaxFiles returns the per-request file cap.
func (r *Receiver) MaxFiles() int {
	return r.maxFiles
}

// Validate checks a batch before anything is written: the file count, the
// MIME class of each file and its declared size.
func (r *Receiver) Validate(files []Upload) error {
	if len(files) > r.maxFiles {
		return apperror.NewBadRequest(fmt.Sprintf("too many media files: maximum is %d per request", r.maxFiles))
	}
	for _, f := range files {
		kind, ok := KindFromContentType(f.ContentType)
		if !ok {
			metrics.UploadsTotal.WithLabelValues("other", "rejected").Inc()
			return apperror.NewBadRequest(fmt.Sprintf("unsupported media type %q: only images and videos are allowed", f.ContentType))
		}
		if f.Size > r.ceiling(kind) {
			metrics.UploadsTotal.WithLabelValues(string(kind), "rejected").Inc()
			return r.tooLarge(kind)
		}
	}
	return nil
}

// Store writes one validated upload to {root}/products/{productID}/original/
// under a fresh random name and returns the record to create for it. The
// copy goes through a temp file so a failed or oversized write never leaves
// a partial original behind.
func (r *Receiver) Store(productID string, position int, f Upload) (*StoredFile, error) {
	kind, ok := KindFromContentType(f.ContentType)
	if !ok {
		return nil, apperror.NewBadRequest(fmt.Sprintf("unsupported media type %q", f.ContentType))
	}
	if !ValidSegment(productID) {
		return nil, apperror.NewBadRequest("invalid product id")
	}

	fileName := uuid.NewString() + NormalizeExtension(f.Filename)
	dst := r.layout.FilePath(productID, VariantOriginal, fileName)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating original directory: %w", err))
	}

	src, err := f.Open()
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("opening upload: %w", err))
	}
	defer src.Close()

	if err := r.copyLimited(dst, src, r.ceiling(kind)); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			metrics.UploadsTotal.WithLabelValues(string(kind), "rejected").Inc()
			return nil, r.tooLarge(kind)
		}
		return nil, apperror.NewInternal(err)
	}

	metrics.UploadsTotal.WithLabelValues(string(kind), "accepted").Inc()
	return &StoredFile{
		Media: Media{
			ID:        uuid.NewString(),
			ProductID: productID,
			Kind:      kind,
			Position:  position,
			Original:  r.layout.PublicPath(productID, VariantOriginal, fileName),
			CreatedAt: time.Now().UTC(),
		},
		AbsPath: dst,
	}, nil
}

// StoreAll validates and stores a batch. If any file fails, originals
// already written for this batch are removed before returning.
func (r *Receiver) StoreAll(productID string, firstPosition int, files []Upload) ([]StoredFile, error) {
	if err := r.Validate(files); err != nil {
		return nil, err
	}
	stored := make([]StoredFile, 0, len(files))
	for i, f := range files {
		sf, err := r.Store(productID, firstPosition+i, f)
		if err != nil {
			r.Discard(stored)
			return nil, err
		}
		stored = append(stored, *sf)
	}
	return stored, nil
}

// Discard unlinks stored originals. Used when the surrounding database
// transaction fails.
func (r *Receiver) Discard(stored []StoredFile) {
	for _, sf := range stored {
		if err := os.Remove(sf.AbsPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			metrics.CleanupErrorsTotal.Inc()
			slog.Warn("failed to discard stored original",
				slog.String("path", sf.AbsPath),
				slog.Any("error", err),
			)
		}
	}
}

// copyLimited streams src into dst via a temp file, failing with a
// TooLarge error once more than limit bytes have been read.
func (r *Receiver) copyLimited(dst string, src io.Reader, limit int64) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, io.LimitReader(src, limit+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing original: %w", err)
	}
	if n > limit {
		os.Remove(tmpName)
		return apperror.NewTooLarge("upload exceeds size limit")
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming original into place: %w", err)
	}
	return nil
}

func (r *Receiver) ceiling(kind Kind) int64 {
	if kind == KindVideo {
		return r.maxVideo
	}
	return r.maxImage
}

func (r *Receiver) tooLarge(kind Kind) *apperror.AppError {
	return apperror.NewTooLarge(fmt.Sprintf("%s exceeds %d MB limit", kind, r.ceiling(kind)/(1024*1024)))
}

// NormalizeExtension extracts a lowercase extension from a caller-supplied
// file name. Missing extensions default to .jpg and .jpeg becomes .jpg.
// Characters outside [a-z0-9] are dropped.
func NormalizeExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	ext = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, strings.TrimPrefix(ext, "."))

	switch {
	case ext == "":
		return ".jpg"
	case ext == "jpeg":
		return ".jpg"
	case len(ext) > 10:
		return ".jpg"
	}
	return "." + ext
}

package media

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/keyxmakerx/catalog/internal/metrics"
)

// Cleaner removes media files from disk. Missing files count as removed.
// Other failures are logged and counted but never stop the caller from
// deleting the database record afterwards.
type Cleaner struct {
	layout *Layout
}

// NewCleaner creates a cleaner over the given layout.
func NewCleaner(layout *Layout) *Cleaner {
	return &Cleaner{layout: layout}
}

// RemoveMediaFiles removes the original and every recorded derivative of m.
// It returns the number of files that could not be removed.
func (c *Cleaner) RemoveMediaFiles(m *Media) int {
	failed := 0
	for _, public := range m.Paths() {
		abs, err := c.layout.Resolve(public)
		if err != nil {
			failed++
			metrics.CleanupErrorsTotal.Inc()
			slog.Warn("skipping media path outside upload layout",
				slog.String("media_id", m.ID),
				slog.String("path", public),
			)
			continue
		}
		if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
			failed++
			metrics.CleanupErrorsTotal.Inc()
			slog.Warn("failed to remove media file",
				slog.String("media_id", m.ID),
				slog.String("path", abs),
				slog.Any("error", err),
			)
		}
	}
	return failed
}

// RemoveProductTree deletes products/{productID} and everything below it in
// one recursive removal. A missing directory is not an error.
func (c *Cleaner) RemoveProductTree(productID string) error {
	if !ValidSegment(productID) {
		return fmt.Errorf("%w: product id %q", ErrInvalidPath, productID)
	}
	dir := c.layout.ProductDir(productID)
	if err := os.RemoveAll(dir); err != nil {
		metrics.CleanupErrorsTotal.Inc()
		slog.Warn("failed to remove product media directory",
			slog.String("product_id", productID),
			slog.String("dir", dir),
			slog.Any("error", err),
		)
		return fmt.Errorf("removing product directory: %w", err)
	}
	return nil
}

// RemoveFiles unlinks absolute paths, tolerating ones that are already gone.
// The worker uses it to undo derivatives written for a record that vanished
// mid-job.
func (c *Cleaner) RemoveFiles(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			metrics.CleanupErrorsTotal.Inc()
			slog.Warn("failed to remove file",
				slog.String("path", p),
				slog.Any("error", err),
			)
		}
	}
}

// PruneEmpty removes a product's variant directories and the product
// directory itself when they are empty. Non-empty directories are kept.
func (c *Cleaner) PruneEmpty(productID string) {
	if !ValidSegment(productID) {
		return
	}
	dir := c.layout.ProductDir(productID)
	for _, v := range []string{VariantSmall, VariantMedium, VariantLarge, VariantOriginal} {
		_ = os.Remove(filepath.Join(dir, v))
	}
	_ = os.Remove(dir)
}

package media

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/catalog/internal/apperror"
)

// contentTypes maps served file extensions to MIME types. Anything else is
// served as application/octet-stream.
var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".avif": "image/avif",
	".svg":  "image/svg+xml",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".ogv":  "video/ogg",
}

// ContentTypeFor returns the MIME type served for a file name.
func ContentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Handler handles HTTP requests for media operations.
type Handler struct {
	service MediaService
	layout  *Layout
}

// NewHandler creates a new media handler.
func NewHandler(service MediaService, layout *Layout) *Handler {
	return &Handler{service: service, layout: layout}
}

// ServeUpload serves a stored file (GET /uploads/*). File names are random
// and never rewritten in place, so responses are cacheable forever.
func (h *Handler) ServeUpload(c echo.Context) error {
	abs, err := h.layout.ServePath(c.Param("*"))
	if err != nil {
		return apperror.NewNotFound("file not found")
	}

	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
		return apperror.NewNotFound("file not found")
	}
	if err != nil {
		return apperror.NewInternal(err)
	}

	hdr := c.Response().Header()
	hdr.Set(echo.HeaderContentType, ContentTypeFor(abs))
	hdr.Set("Cache-Control", "public, max-age=31536000, immutable")
	return c.File(abs)
}

// Get returns one media item (GET /api/products/:id/media/:mediaID).
func (h *Handler) Get(c echo.Context) error {
	m, err := h.service.Get(c.Request().Context(), c.Param("id"), c.Param("mediaID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, NewMediaResponse(m))
}

// Delete removes one media item (DELETE /api/products/:id/media/:mediaID).
func (h *Handler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("id"), c.Param("mediaID")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// Reprocess re-enqueues derivative generation
// (POST /api/products/:id/media/:mediaID/reprocess).
func (h *Handler) Reprocess(c echo.Context) error {
	taskID, err := h.service.Reprocess(c.Request().Context(), c.Param("id"), c.Param("mediaID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"status": "queued",
		"taskId": taskID,
	})
}

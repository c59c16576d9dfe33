// Package media owns product media: the upload receiver that writes
// originals to disk, the record store, the on-disk layout shared with the
// derivative worker, and the cleanup routine that removes files on delete.
package media

import (
	"strings"
	"time"
)

// Kind classifies an uploaded file by its declared MIME type.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// KindFromContentType maps a declared MIME type to a Kind. ok is false for
// anything that is neither image/* nor video/*.
func KindFromContentType(contentType string) (kind Kind, ok bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return KindImage, true
	case strings.HasPrefix(ct, "video/"):
		return KindVideo, true
	}
	return "", false
}

// Variant names, which are also the directory names under a product folder.
const (
	VariantOriginal = "original"
	VariantSmall    = "small"
	VariantMedium   = "medium"
	VariantLarge    = "large"
)

// Media is one uploaded file belonging to a product. Original is always set.
// Small, Medium and Large stay nil until the derivative worker fills them,
// and remain nil forever for video.
type Media struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Kind      Kind      `json:"kind"`
	Position  int       `json:"position"`
	Original  string    `json:"original"`
	Small     *string   `json:"small"`
	Medium    *string   `json:"medium"`
	Large     *string   `json:"large"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsVideo reports whether the item is a video.
func (m *Media) IsVideo() bool {
	return m.Kind == KindVideo
}

// Processed reports whether all three derivatives are recorded.
func (m *Media) Processed() bool {
	return m.Small != nil && m.Medium != nil && m.Large != nil
}

// Paths returns every non-null public path on the record, original first.
func (m *Media) Paths() []string {
	paths := []string{m.Original}
	for _, p := range []*string{m.Small, m.Medium, m.Large} {
		if p != nil && *p != "" {
			paths = append(paths, *p)
		}
	}
	return paths
}

// DisplayURL returns the smallest available rendition: small, then medium,
// then large, then the original. Pending derivatives never produce a broken
// link because the original is always present.
func (m *Media) DisplayURL() string {
	if !m.IsVideo() {
		for _, p := range []*string{m.Small, m.Medium, m.Large} {
			if p != nil && *p != "" {
				return *p
			}
		}
	}
	return m.Original
}

// CoverURL picks the display URL of the first image in items, or "" when
// the product has no images.
func CoverURL(items []Media) string {
	for i := range items {
		if !items[i].IsVideo() {
			return items[i].DisplayURL()
		}
	}
	return ""
}

// Derivatives are the public paths written by one successful job.
type Derivatives struct {
	Small  string
	Medium string
	Large  string
}

// MediaResponse is the JSON shape returned by the media endpoints.
type MediaResponse struct {
	Media
	DisplayURL string `json:"displayUrl"`
	Processed  bool   `json:"processed"`
}

// NewMediaResponse wraps a record with its computed display fields.
func NewMediaResponse(m *Media) MediaResponse {
	return MediaResponse{Media: *m, DisplayURL: m.DisplayURL(), Processed: m.Processed()}
}

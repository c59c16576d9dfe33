// Package products is the product boundary of the catalog: field
// validation, the transactional unit of work that ties product rows to their
// media rows, and the hand-off of new images to the derivative pipeline.
package products

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/keyxmakerx/catalog/internal/plugins/media"
)

// Field limits, counted in characters.
const (
	MaxTitleLength            = 200
	MaxShortDescriptionLength = 300
	MaxDescriptionLength      = 5000
)

// maxPrice is the largest value a DECIMAL(12,2) column holds.
var maxPrice = decimal.RequireFromString("9999999999.99")

// Product is a catalog listing. DiscountPrice is null when no discount is
// set; a zero discount is stored as null.
type Product struct {
	ID               string              `json:"id"`
	Title            string              `json:"title"`
	ShortDescription string              `json:"shortDescription"`
	Description      string              `json:"description"`
	Price            decimal.Decimal     `json:"price"`
	CostPrice        decimal.Decimal     `json:"costPrice"`
	DiscountPrice    decimal.NullDecimal `json:"discountPrice"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`

	// Populated by the service, not stored on the product row.
	Media    []media.Media `json:"media"`
	CoverURL string        `json:"coverUrl"`
}

// attachMedia sets the product's media and derives its cover image.
func (p *Product) attachMedia(items []media.Media) {
	if items == nil {
		items = []media.Media{}
	}
	p.Media = items
	p.CoverURL = media.CoverURL(items)
}

// ProductInput carries a create or edit request. Prices arrive as the raw
// form strings and are parsed during validation.
type ProductInput struct {
	Title            string
	ShortDescription string
	Description      string
	Price            string
	CostPrice        string
	DiscountPrice    string

	// Files are new media to attach.
	Files []media.Upload

	// RemoveMediaIDs lists existing media to detach (edit only).
	RemoveMediaIDs []string
}

// --- Pagination ---

// PerPageOptions are the page sizes the list endpoint accepts.
var PerPageOptions = []int{5, 10, 20, 50}

// DefaultPerPage is used when no or an unsupported page size is requested.
const DefaultPerPage = 10

// ListOptions holds pagination parameters for list queries.
type ListOptions struct {
	Page    int
	PerPage int
}

// DefaultListOptions returns the first page at the default size.
func DefaultListOptions() ListOptions {
	return ListOptions{Page: 1, PerPage: DefaultPerPage}
}

// normalize clamps the page to 1 and replaces unsupported sizes with the default.
func (o ListOptions) normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	supported := false
	for _, n := range PerPageOptions {
		if o.PerPage == n {
			supported = true
			break
		}
	}
	if !supported {
		o.PerPage = DefaultPerPage
	}
	return o
}

// Offset returns the SQL OFFSET value for the current page.
func (o ListOptions) Offset() int {
	if o.Page < 1 {
		return 0
	}
	return (o.Page - 1) * o.PerPage
}

// ListResult is one page of products.
type ListResult struct {
	Items      []Product `json:"items"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PerPage    int       `json:"perPage"`
	TotalPages int       `json:"totalPages"`
}

func totalPages(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

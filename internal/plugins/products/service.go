package products

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/keyxmakerx/catalog/internal/apperror"
	"github.com/keyxmakerx/catalog/internal/plugins/media"
	"github.com/keyxmakerx/catalog/internal/sanitize"
)

// ProductService handles business logic for products. It owns field
// validation and the ordering of file writes, the database transaction,
// file removal and job scheduling around each write.
type ProductService interface {
	Create(ctx context.Context, input ProductInput) (*Product, error)
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, opts ListOptions) (*ListResult, error)
	Update(ctx context.Context, id string, input ProductInput) (*Product, error)
	Delete(ctx context.Context, id string) error
}

// productService implements ProductService.
type productService struct {
	repo      ProductRepository
	media     media.MediaRepository
	receiver  *media.Receiver
	cleaner   *media.Cleaner
	scheduler *media.Scheduler
}

// NewProductService creates a new product service.
func NewProductService(repo ProductRepository, mediaRepo media.MediaRepository, receiver *media.Receiver, cleaner *media.Cleaner, scheduler *media.Scheduler) ProductService {
	return &productService{
		repo:      repo,
		media:     mediaRepo,
		receiver:  receiver,
		cleaner:   cleaner,
		scheduler: scheduler,
	}
}

// now is the clock used for created/updated timestamps.
var now = func() time.Time { return time.Now().UTC().Truncate(time.Second) }

// Create validates the input, stores any originals, inserts the product and
// its media in one transaction and, once committed, schedules derivative
// jobs for the images.
func (s *productService) Create(ctx context.Context, input ProductInput) (*Product, error) {
	p, err := validateFields(input)
	if err != nil {
		return nil, err
	}
	if err := s.receiver.Validate(input.Files); err != nil {
		return nil, err
	}

	p.ID = uuid.NewString()
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt

	stored, err := s.receiver.StoreAll(p.ID, 0, input.Files)
	if err != nil {
		s.cleaner.PruneEmpty(p.ID)
		return nil, err
	}
	records := recordsOf(stored)

	if err := s.repo.Create(ctx, p, records); err != nil {
		s.receiver.Discard(stored)
		s.cleaner.PruneEmpty(p.ID)
		return nil, internal(err)
	}

	enqueued := s.scheduler.Schedule(ctx, records)
	slog.Info("product created",
		slog.String("product_id", p.ID),
		slog.Int("media", len(records)),
		slog.Int("jobs_enqueued", enqueued),
	)

	p.attachMedia(records)
	return p, nil
}

// Get returns a product with its media and cover URL.
func (s *productService) Get(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.media.ListByProduct(ctx, id)
	if err != nil {
		return nil, internal(err)
	}
	p.attachMedia(items)
	return p, nil
}

// List returns a page of products, newest first. Unsupported page sizes
// fall back to the default.
func (s *productService) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	opts = opts.normalize()

	items, total, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, internal(err)
	}

	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	byProduct, err := s.media.ListByProducts(ctx, ids)
	if err != nil {
		return nil, internal(err)
	}
	for i := range items {
		items[i].attachMedia(byProduct[items[i].ID])
	}
	if items == nil {
		items = []Product{}
	}

	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       opts.Page,
		PerPage:    opts.PerPage,
		TotalPages: totalPages(total, opts.PerPage),
	}, nil
}

// Update applies an edit as one batch. New originals are written before the
// transaction and discarded if it fails. Files of removed media are unlinked
// only after the transaction commits, so a failed edit never loses files
// that surviving records still reference.
func (s *productService) Update(ctx context.Context, id string, input ProductInput) (*Product, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p, err := validateFields(input)
	if err != nil {
		return nil, err
	}
	if err := s.receiver.Validate(input.Files); err != nil {
		return nil, err
	}

	current, err := s.media.ListByProduct(ctx, id)
	if err != nil {
		return nil, internal(err)
	}
	removed, kept, err := partitionRemovals(current, input.RemoveMediaIDs)
	if err != nil {
		return nil, err
	}

	p.ID = id
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = now()

	stored, err := s.receiver.StoreAll(id, nextPosition(current), input.Files)
	if err != nil {
		return nil, err
	}
	added := recordsOf(stored)

	if err := s.repo.Update(ctx, p, added, mediaIDs(removed)); err != nil {
		s.receiver.Discard(stored)
		return nil, internal(err)
	}

	failures := 0
	for i := range removed {
		failures += s.cleaner.RemoveMediaFiles(&removed[i])
	}
	enqueued := s.scheduler.Schedule(ctx, added)

	slog.Info("product updated",
		slog.String("product_id", id),
		slog.Int("media_added", len(added)),
		slog.Int("media_removed", len(removed)),
		slog.Int("file_removal_failures", failures),
		slog.Int("jobs_enqueued", enqueued),
	)

	p.attachMedia(append(kept, added...))
	return p, nil
}

// Delete removes the product's upload tree first and then its rows, so an
// interrupted delete leaves orphaned files rather than records pointing at
// missing files.
func (s *productService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}

	// Failures are logged and counted by the cleaner; the rows go regardless.
	_ = s.cleaner.RemoveProductTree(id)

	if err := s.repo.Delete(ctx, id); err != nil {
		return internal(err)
	}
	slog.Info("product deleted", slog.String("product_id", id))
	return nil
}

// --- Helpers ---

// validateFields checks and normalizes the textual and price fields.
func validateFields(input ProductInput) (*Product, error) {
	title := sanitize.PlainText(strings.TrimSpace(input.Title))
	if title == "" {
		return nil, apperror.NewValidation("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, apperror.NewValidation(fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}

	short := sanitize.PlainText(strings.TrimSpace(input.ShortDescription))
	if utf8.RuneCountInString(short) > MaxShortDescriptionLength {
		return nil, apperror.NewValidation(fmt.Sprintf("short description must be at most %d characters", MaxShortDescriptionLength))
	}

	desc := sanitize.HTML(strings.TrimSpace(input.Description))
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return nil, apperror.NewValidation(fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength))
	}

	price, err := parsePrice("price", input.Price, true)
	if err != nil {
		return nil, err
	}
	cost, err := parsePrice("cost price", input.CostPrice, false)
	if err != nil {
		return nil, err
	}
	discount, err := parsePrice("discount price", input.DiscountPrice, false)
	if err != nil {
		return nil, err
	}
	if !discount.IsZero() && discount.GreaterThan(price) {
		return nil, apperror.NewValidation("discount price must not exceed price")
	}

	p := &Product{
		Title:            title,
		ShortDescription: short,
		Description:      desc,
		Price:            price,
		CostPrice:        cost,
	}
	if !discount.IsZero() {
		p.DiscountPrice = decimal.NewNullDecimal(discount)
	}
	return p, nil
}

// parsePrice parses a non-negative amount rounded to cents. An empty
// optional value is zero.
func parsePrice(field, raw string, required bool) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return decimal.Zero, apperror.NewValidation(field + " is required")
		}
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperror.NewValidation(field + " must be a number")
	}
	if d.IsNegative() {
		return decimal.Zero, apperror.NewValidation(field + " must not be negative")
	}
	d = d.Round(2)
	if d.GreaterThan(maxPrice) {
		return decimal.Zero, apperror.NewValidation(field + " is too large")
	}
	return d, nil
}

// partitionRemovals splits current media into those named by removeIDs and
// the rest. Every ID must belong to the product.
func partitionRemovals(current []media.Media, removeIDs []string) (removed, kept []media.Media, err error) {
	want := make(map[string]bool, len(removeIDs))
	for _, id := range removeIDs {
		id = strings.TrimSpace(id)
		if id != "" {
			want[id] = true
		}
	}

	found := 0
	kept = make([]media.Media, 0, len(current))
	for _, m := range current {
		if want[m.ID] {
			removed = append(removed, m)
			found++
			continue
		}
		kept = append(kept, m)
	}
	if found != len(want) {
		return nil, nil, apperror.NewBadRequest("one or more media items do not belong to this product")
	}
	return removed, kept, nil
}

func nextPosition(current []media.Media) int {
	next := 0
	for _, m := range current {
		if m.Position >= next {
			next = m.Position + 1
		}
	}
	return next
}

func recordsOf(stored []media.StoredFile) []media.Media {
	records := make([]media.Media, len(stored))
	for i := range stored {
		records[i] = stored[i].Media
	}
	return records
}

func mediaIDs(items []media.Media) []string {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	return ids
}

// internal passes AppErrors through and wraps anything else as a 500.
func internal(err error) error {
	if _, ok := err.(*apperror.AppError); ok {
		return err
	}
	return apperror.NewInternal(err)
}

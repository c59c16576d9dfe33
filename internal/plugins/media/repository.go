package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keyxmakerx/catalog/internal/apperror"
)

// Execer is satisfied by both *sql.DB and *sql.Tx, so the batch helpers can
// run inside a caller's transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Querier is the read half of *sql.DB and *sql.Tx.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RowExists reports whether query, a single-row SELECT, returns a row.
// Writers use it when an UPDATE matched zero rows: without clientFoundRows,
// MariaDB counts only changed rows, so an identical rewrite also reports 0.
func RowExists(ctx context.Context, q Querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking row existence: %w", err)
	}
	return true, nil
}

// MediaRepository defines the data access contract for product media.
type MediaRepository interface {
	FindByID(ctx context.Context, id string) (*Media, error)
	ListByProduct(ctx context.Context, productID string) ([]Media, error)

	// ListByProducts returns the media of several products keyed by product ID.
	ListByProducts(ctx context.Context, productIDs []string) (map[string][]Media, error)

	Create(ctx context.Context, m *Media) error

	// UpdateDerivatives writes all three derivative paths in one statement.
	// Returns NotFound when the record no longer exists.
	UpdateDerivatives(ctx context.Context, id string, d Derivatives) error

	Delete(ctx context.Context, id string) error

	// InsertRecords inserts new media rows using ex, typically a transaction.
	InsertRecords(ctx context.Context, ex Execer, records []Media) error

	// DeleteRecords deletes the given media rows of one product using ex and
	// returns how many rows matched.
	DeleteRecords(ctx context.Context, ex Execer, productID string, ids []string) (int64, error)

	// DeleteByProduct deletes every media row of one product using ex.
	DeleteByProduct(ctx context.Context, ex Execer, productID string) (int64, error)
}

// mediaRepository implements MediaRepository with MariaDB queries.
type mediaRepository struct {
	db *sql.DB
}

// NewMediaRepository creates a new media repository.
func NewMediaRepository(db *sql.DB) MediaRepository {
	return &mediaRepository{db: db}
}

const mediaColumns = `id, product_id, kind, position, original, small, medium, large, created_at`

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMedia(s scanner) (*Media, error) {
	m := &Media{}
	var small, medium, large sql.NullString
	if err := s.Scan(
		&m.ID, &m.ProductID, &m.Kind, &m.Position, &m.Original,
		&small, &medium, &large, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	m.Small = nullToPtr(small)
	m.Medium = nullToPtr(medium)
	m.Large = nullToPtr(large)
	return m, nil
}

func nullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// FindByID retrieves a media record by its UUID.
func (r *mediaRepository) FindByID(ctx context.Context, id string) (*Media, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+mediaColumns+` FROM product_media WHERE id = ?`, id)
	m, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("media not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying media by id: %w", err)
	}
	return m, nil
}

// ListByProduct returns a product's media in upload order.
func (r *mediaRepository) ListByProduct(ctx context.Context, productID string) ([]Media, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mediaColumns+` FROM product_media
		 WHERE product_id = ? ORDER BY position, created_at`, productID)
	if err != nil {
		return nil, fmt.Errorf("listing product media: %w", err)
	}
	defer rows.Close()

	items := []Media{}
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning media row: %w", err)
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

// ListByProducts batches the media lookup for a page of products.
func (r *mediaRepository) ListByProducts(ctx context.Context, productIDs []string) (map[string][]Media, error) {
	out := make(map[string][]Media, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(productIDs)), ",")
	args := make([]any, len(productIDs))
	for i, id := range productIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mediaColumns+` FROM product_media
		 WHERE product_id IN (`+placeholders+`) ORDER BY product_id, position, created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing media for products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning media row: %w", err)
		}
		out[m.ProductID] = append(out[m.ProductID], *m)
	}
	return out, rows.Err()
}

// Create inserts a single media record.
func (r *mediaRepository) Create(ctx context.Context, m *Media) error {
	return r.InsertRecords(ctx, r.db, []Media{*m})
}

// UpdateDerivatives sets small, medium and large together. Re-running with
// identical values succeeds whether or not the connection reports found or
// changed rows.
func (r *mediaRepository) UpdateDerivatives(ctx context.Context, id string, d Derivatives) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE product_media SET small = ?, medium = ?, large = ? WHERE id = ?`,
		d.Small, d.Medium, d.Large, id)
	if err != nil {
		return fmt.Errorf("updating media derivatives: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	found, err := RowExists(ctx, r.db, `SELECT 1 FROM product_media WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if !found {
		return apperror.NewNotFound("media not found")
	}
	return nil
}

// Delete removes a media record.
func (r *mediaRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM product_media WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting media: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NewNotFound("media not found")
	}
	return nil
}

// InsertRecords inserts media rows with derivative columns left NULL.
func (r *mediaRepository) InsertRecords(ctx context.Context, ex Execer, records []Media) error {
	if len(records) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO product_media (id, product_id, kind, position, original, created_at) VALUES `)
	args := make([]any, 0, len(records)*6)
	for i, m := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, m.ID, m.ProductID, string(m.Kind), m.Position, m.Original, createdAt)
	}

	if _, err := ex.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("inserting media records: %w", err)
	}
	return nil
}

// DeleteRecords removes the listed media rows, scoped to productID so a
// caller cannot delete another product's media by ID.
func (r *mediaRepository) DeleteRecords(ctx context.Context, ex Execer, productID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, productID)
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := ex.ExecContext(ctx,
		`DELETE FROM product_media WHERE product_id = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting media records: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// DeleteByProduct removes all media rows of a product. The foreign key
// cascades as well; deleting explicitly keeps the behaviour independent of
// the schema.
func (r *mediaRepository) DeleteByProduct(ctx context.Context, ex Execer, productID string) (int64, error) {
	result, err := ex.ExecContext(ctx, `DELETE FROM product_media WHERE product_id = ?`, productID)
	if err != nil {
		return 0, fmt.Errorf("deleting product media: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

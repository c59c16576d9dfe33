package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/keyxmakerx/catalog/internal/apperror"
	"github.com/keyxmakerx/catalog/internal/plugins/media"
)

// ProductRepository defines the data access contract for products. Every
// write that touches media rows runs in one transaction together with the
// product row.
type ProductRepository interface {
	FindByID(ctx context.Context, id string) (*Product, error)

	// List returns one page of products, newest first, and the total count.
	List(ctx context.Context, opts ListOptions) ([]Product, int, error)

	// Create inserts the product and its media rows atomically.
	Create(ctx context.Context, p *Product, records []media.Media) error

	// Update writes the product fields, deletes removedIDs and inserts added
	// atomically. Returns NotFound when the product no longer exists.
	Update(ctx context.Context, p *Product, added []media.Media, removedIDs []string) error

	// Delete removes the product and all of its media rows atomically.
	Delete(ctx context.Context, id string) error
}

// productRepository implements ProductRepository with MariaDB queries.
type productRepository struct {
	db    *sql.DB
	media media.MediaRepository
}

// NewProductRepository creates a new product repository. Media rows are
// written through mediaRepo inside the product's transaction.
func NewProductRepository(db *sql.DB, mediaRepo media.MediaRepository) ProductRepository {
	return &productRepository{db: db, media: mediaRepo}
}

const productColumns = `id, title, short_description, description, price, cost_price, discount_price, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (*Product, error) {
	p := &Product{}
	if err := s.Scan(
		&p.ID, &p.Title, &p.ShortDescription, &p.Description,
		&p.Price, &p.CostPrice, &p.DiscountPrice,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return p, nil
}

// FindByID retrieves a product by its ID.
func (r *productRepository) FindByID(ctx context.Context, id string) (*Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("product not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying product by id: %w", err)
	}
	return p, nil
}

// List returns products ordered by creation date, newest first.
func (r *productRepository) List(ctx context.Context, opts ListOptions) ([]Product, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		opts.PerPage, opts.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var items []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning product row: %w", err)
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating product rows: %w", err)
	}
	return items, total, nil
}

// Create inserts a product row and its media rows in one transaction.
func (r *productRepository) Create(ctx context.Context, p *Product, records []media.Media) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning create tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.ShortDescription, p.Description,
		p.Price, p.CostPrice, p.DiscountPrice,
		p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return fmt.Errorf("inserting product: %w", err)
	}

	if err := r.media.InsertRecords(ctx, tx, records); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing create tx: %w", err)
	}
	return nil
}

// Update applies a product edit in one transaction: field changes, removal
// of detached media rows and insertion of new ones.
func (r *productRepository) Update(ctx context.Context, p *Product, added []media.Media, removedIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning update tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET title = ?, short_description = ?, description = ?,
		     price = ?, cost_price = ?, discount_price = ?, updated_at = ?
		 WHERE id = ?`,
		p.Title, p.ShortDescription, p.Description,
		p.Price, p.CostPrice, p.DiscountPrice, p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating product: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		// Zero can also mean the row already held these values.
		found, err := media.RowExists(ctx, tx, `SELECT 1 FROM products WHERE id = ?`, p.ID)
		if err != nil {
			return err
		}
		if !found {
			return apperror.NewNotFound("product not found")
		}
	}

	if _, err := r.media.DeleteRecords(ctx, tx, p.ID, removedIDs); err != nil {
		return err
	}
	if err := r.media.InsertRecords(ctx, tx, added); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing update tx: %w", err)
	}
	return nil
}

// Delete removes a product's media rows and then the product row.
func (r *productRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := r.media.DeleteByProduct(ctx, tx, id); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NewNotFound("product not found")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete tx: %w", err)
	}
	return nil
}

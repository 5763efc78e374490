package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"catalogsync-api/internal/model"
)

const productColumns = `shopify_id, title, description, price, inventory_quantity, variant_id, inventory_item_id`

// SQLProductRepository implements ProductRepository on database/sql for the
// SQLite, PostgreSQL and MySQL dialects.
type SQLProductRepository struct {
	db      *sql.DB
	q       queryer
	dialect dialect
	inTx    bool
}

func scanProduct(scan func(...interface{}) error) (*model.ProductRecord, error) {
	var (
		p               model.ProductRecord
		variantID       sql.NullString
		inventoryItemID sql.NullString
	)
	err := scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.InventoryQuantity, &variantID, &inventoryItemID)
	if err != nil {
		return nil, err
	}
	if variantID.Valid {
		p.VariantID = model.StringPtr(variantID.String)
	}
	if inventoryItemID.Valid {
		p.InventoryItemID = model.StringPtr(inventoryItemID.String)
	}
	return &p, nil
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// Upsert inserts or overwrites the product keyed by its remote id.
func (r *SQLProductRepository) Upsert(ctx context.Context, rec model.ProductRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("failed to upsert product: empty id")
	}
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, r.dialect.rebind(r.dialect.upsertProduct),
		rec.ID, rec.Title, rec.Description, rec.Price, rec.InventoryQuantity,
		nullable(rec.VariantID), nullable(rec.InventoryItemID), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", rec.ID, err)
	}
	return nil
}

// Exists reports whether a product row with id exists.
func (r *SQLProductRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := r.q.QueryRowContext(ctx, r.dialect.rebind(`SELECT COUNT(*) FROM products WHERE shopify_id = ?`), id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check product %s: %w", id, err)
	}
	return count > 0, nil
}

// DeleteByID removes the product row with id, if any.
func (r *SQLProductRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, r.dialect.rebind(`DELETE FROM products WHERE shopify_id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, err)
	}
	return nil
}

// FindByID returns the product with id, or nil when absent.
func (r *SQLProductRepository) FindByID(ctx context.Context, id string) (*model.ProductRecord, error) {
	row := r.q.QueryRowContext(ctx,
		r.dialect.rebind(`SELECT `+productColumns+` FROM products WHERE shopify_id = ?`), id)
	p, err := scanProduct(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return p, nil
}

// FindAllExcluding returns every product whose id is not in ids. The set
// difference is computed while streaming rows so the id set size is not
// bounded by the driver's placeholder limit.
func (r *SQLProductRepository) FindAllExcluding(ctx context.Context, ids []string) ([]model.ProductRecord, error) {
	exclude := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		exclude[id] = struct{}{}
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at, shopify_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	missing := []model.ProductRecord{}
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if _, ok := exclude[p.ID]; ok {
			continue
		}
		missing = append(missing, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return missing, nil
}

// ListPage returns one page of products, newest first.
func (r *SQLProductRepository) ListPage(ctx context.Context, perPage, page int) (*model.ProductPage, error) {
	var total int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	offset := (page - 1) * perPage
	rows, err := r.q.QueryContext(ctx, r.dialect.rebind(
		`SELECT `+productColumns+` FROM products ORDER BY created_at DESC, shopify_id DESC LIMIT ? OFFSET ?`),
		perPage, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []model.ProductRecord{}
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	totalPages := model.TotalPages(total, perPage)
	return &model.ProductPage{
		Products:        products,
		CurrentPage:     page,
		TotalPages:      totalPages,
		PerPage:         perPage,
		Total:           total,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}, nil
}

// WithinTx runs fn inside a database transaction. Nested calls join the
// outer transaction.
func (r *SQLProductRepository) WithinTx(ctx context.Context, fn func(tx ProductRepository) error) error {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLProductRepository{db: r.db, q: tx, dialect: r.dialect, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetStats returns statistics about the catalog database.
func (r *SQLProductRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	stats["dialect"] = r.dialect.name

	var count int64
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		return nil, err
	}
	stats["total_products"] = count

	var audits int64
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events").Scan(&audits); err == nil {
		stats["total_audit_events"] = audits
	}

	dbStats := r.db.Stats()
	stats["connections"] = map[string]interface{}{
		"open":     dbStats.OpenConnections,
		"in_use":   dbStats.InUse,
		"idle":     dbStats.Idle,
		"max_open": dbStats.MaxOpenConnections,
	}

	return stats, nil
}

// Ensure SQLProductRepository implements ProductRepository
var _ ProductRepository = (*SQLProductRepository)(nil)

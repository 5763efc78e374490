package repository

import (
	"context"

	"catalogsync-api/internal/model"
)

// ProductRepository defines local catalog data access. Products are keyed by
// their remote identifier only.
type ProductRepository interface {
	// Upsert inserts the record or overwrites every field of an existing one.
	Upsert(ctx context.Context, rec model.ProductRecord) error

	// Exists reports whether a row with id exists.
	Exists(ctx context.Context, id string) (bool, error)

	// DeleteByID removes the row with id. Deleting a missing row is not an error.
	DeleteByID(ctx context.Context, id string) error

	// FindByID returns the record with id, or nil when absent.
	FindByID(ctx context.Context, id string) (*model.ProductRecord, error)

	// FindAllExcluding returns every record whose id is not in ids.
	FindAllExcluding(ctx context.Context, ids []string) ([]model.ProductRecord, error)

	// ListPage returns one page of products, newest first. page is 1-based.
	ListPage(ctx context.Context, perPage, page int) (*model.ProductPage, error)

	// WithinTx runs fn against a repository bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx ProductRepository) error) error

	// GetStats returns statistics about the catalog database.
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// AuditRepository defines audit trail storage.
type AuditRepository interface {
	// InsertAuditEvent stores one event.
	InsertAuditEvent(ctx context.Context, ev *model.AuditEvent) error

	// InsertAuditEvents stores several events at once.
	InsertAuditEvents(ctx context.Context, events []model.AuditEvent) error

	// ListAuditEvents returns one page of events, newest first.
	ListAuditEvents(ctx context.Context, perPage, page int) (*model.AuditLogPage, error)
}

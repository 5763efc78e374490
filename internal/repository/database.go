package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"catalogsync-api/internal/obs"
)

func logger() *slog.Logger {
	return obs.Logger.With("component", "repository")
}

// dialect captures the SQL differences between the supported backends.
type dialect struct {
	name   string
	schema []string
	// upsertProduct takes the nine product columns in insert order.
	upsertProduct string
	// positional reports whether placeholders are $1, $2, ... instead of ?.
	positional bool
}

// rebind rewrites ? placeholders for dialects that use positional ones.
func (d dialect) rebind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	for _, r := range query {
		if r == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Database is an opened catalog database. Products and audit events share it.
type Database struct {
	db      *sql.DB
	dialect dialect
}

// Products returns the product repository backed by this database.
func (d *Database) Products() *SQLProductRepository {
	return &SQLProductRepository{db: d.db, q: d.db, dialect: d.dialect}
}

// AuditEvents returns the audit repository backed by this database.
func (d *Database) AuditEvents() *SQLAuditRepository {
	return &SQLAuditRepository{db: d.db, dialect: d.dialect}
}

// Dialect returns the backend name (sqlite, postgres or mysql).
func (d *Database) Dialect() string {
	return d.dialect.name
}

// Ping verifies the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database connection pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// migrate creates the tables if they do not exist.
func migrate(db *sql.DB, d dialect) error {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

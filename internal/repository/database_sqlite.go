package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS products (
			shopify_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price TEXT NOT NULL,
			inventory_quantity INTEGER NOT NULL DEFAULT 0,
			variant_id TEXT,
			inventory_item_id TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			subject_type TEXT NOT NULL,
			target TEXT,
			payload TEXT NOT NULL,
			succeeded INTEGER NOT NULL,
			occurred_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_occurred_at ON audit_events(occurred_at)`,
	},
	upsertProduct: `
		INSERT INTO products (shopify_id, title, description, price, inventory_quantity,
			variant_id, inventory_item_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(shopify_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			price = excluded.price,
			inventory_quantity = excluded.inventory_quantity,
			variant_id = excluded.variant_id,
			inventory_item_id = excluded.inventory_item_id,
			updated_at = excluded.updated_at`,
}

// OpenSQLite opens (and creates if needed) the SQLite catalog database at dbPath,
// e.g. "./data/catalog.db".
func OpenSQLite(dbPath string) (*Database, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer; a single connection also serializes transactions.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := migrate(db, sqliteDialect); err != nil {
		db.Close()
		return nil, err
	}

	logger().Info("catalog database initialized", "dialect", "sqlite", "path", dbPath)
	return &Database{db: db, dialect: sqliteDialect}, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes live in the table definitions.
var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS products (
			shopify_id VARCHAR(255) NOT NULL PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			price DECIMAL(14, 2) NOT NULL,
			inventory_quantity INT NOT NULL DEFAULT 0,
			variant_id VARCHAR(255) NULL,
			inventory_item_id VARCHAR(255) NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			INDEX idx_products_created_at (created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			action VARCHAR(16) NOT NULL,
			subject_type VARCHAR(16) NOT NULL,
			target VARCHAR(255) NULL,
			payload TEXT NOT NULL,
			succeeded BOOLEAN NOT NULL,
			occurred_at DATETIME(6) NOT NULL,
			INDEX idx_audit_events_occurred_at (occurred_at)
		)`,
	},
	upsertProduct: `
		INSERT INTO products (shopify_id, title, description, price, inventory_quantity,
			variant_id, inventory_item_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			title = VALUES(title),
			description = VALUES(description),
			price = VALUES(price),
			inventory_quantity = VALUES(inventory_quantity),
			variant_id = VALUES(variant_id),
			inventory_item_id = VALUES(inventory_item_id),
			updated_at = VALUES(updated_at)`,
}

// OpenMySQL opens the MySQL catalog database. The DSN must set parseTime=true.
func OpenMySQL(dsn string) (*Database, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if err := migrate(db, mysqlDialect); err != nil {
		db.Close()
		return nil, err
	}

	logger().Info("catalog database initialized", "dialect", "mysql", "max_open", 10, "max_idle", 5)
	return &Database{db: db, dialect: mysqlDialect}, nil
}

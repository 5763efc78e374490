package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CATALOG_DB_TYPE", "")
	t.Setenv("REMOTE_TIMEOUT", "")
	t.Setenv("AUDIT_QUEUE_SIZE", "")
	t.Setenv("SHOPIFY_API_VERSION", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CatalogDB.Type != "sqlite" {
		t.Fatalf("catalog db type default: %q", cfg.CatalogDB.Type)
	}
	if cfg.Remote.Timeout != 15*time.Second {
		t.Fatalf("remote timeout default: %v", cfg.Remote.Timeout)
	}
	if cfg.Audit.QueueSize != 256 {
		t.Fatalf("audit queue size default: %d", cfg.Audit.QueueSize)
	}
	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Fatalf("server address default: %s", cfg.Server.Address())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CATALOG_DB_TYPE", "postgres")
	t.Setenv("CATALOG_DB_HOST", "db")
	t.Setenv("CATALOG_DB_PORT", "6543")
	t.Setenv("CATALOG_DB_USER", "sync")
	t.Setenv("CATALOG_DB_PASS", "secret")
	t.Setenv("CATALOG_DB_NAME", "shop")
	t.Setenv("REMOTE_TIMEOUT", "3s")
	t.Setenv("SHOPIFY_SHOP_DOMAIN", "demo.myshopify.com")
	t.Setenv("SHOPIFY_API_VERSION", "2025-10")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.CatalogDB.PostgresDSN(); got != "postgres://sync:secret@db:6543/shop?sslmode=disable" {
		t.Fatalf("postgres dsn: %s", got)
	}
	if got := cfg.CatalogDB.MySQLDSN(); got != "sync:secret@tcp(db:6543)/shop?parseTime=true" {
		t.Fatalf("mysql dsn: %s", got)
	}
	if cfg.Remote.Timeout != 3*time.Second {
		t.Fatalf("remote timeout env: %v", cfg.Remote.Timeout)
	}
	if got := cfg.Remote.Endpoint(); got != "https://demo.myshopify.com/admin/api/2025-10/graphql.json" {
		t.Fatalf("endpoint: %s", got)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("REMOTE_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

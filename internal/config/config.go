package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Cache     CacheConfig
	CatalogDB CatalogDBConfig
	Remote    RemoteConfig
	Audit     AuditConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"300s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"catalogsync-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"` // json or text
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"1h"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// CatalogDBConfig holds local catalog database settings.
type CatalogDBConfig struct {
	Type string `envconfig:"CATALOG_DB_TYPE" default:"sqlite"` // sqlite, postgres, mysql or memory
	Path string `envconfig:"CATALOG_DB_PATH" default:"./data/catalog.db"`
	// PostgreSQL / MySQL settings
	Host     string `envconfig:"CATALOG_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"CATALOG_DB_PORT" default:"5432"`
	Name     string `envconfig:"CATALOG_DB_NAME" default:"catalog"`
	User     string `envconfig:"CATALOG_DB_USER" default:"postgres"`
	Password string `envconfig:"CATALOG_DB_PASS" default:""`
	SSLMode  string `envconfig:"CATALOG_DB_SSLMODE" default:"disable"`
}

// RemoteConfig holds the Shopify Admin API settings.
type RemoteConfig struct {
	ShopDomain  string        `envconfig:"SHOPIFY_SHOP_DOMAIN" default:""`
	AccessToken string        `envconfig:"SHOPIFY_ACCESS_TOKEN" default:""`
	APIVersion  string        `envconfig:"SHOPIFY_API_VERSION" default:"2026-01"`
	Timeout     time.Duration `envconfig:"REMOTE_TIMEOUT" default:"15s"`
	RateLimit   float64       `envconfig:"REMOTE_RATE_LIMIT" default:"2"` // requests per second
	RateBurst   int           `envconfig:"REMOTE_RATE_BURST" default:"4"`
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	Store     string `envconfig:"AUDIT_STORE" default:"sql"`    // sql or mongodb
	Buffer    string `envconfig:"AUDIT_BUFFER" default:"none"`  // none or redis
	QueueSize int    `envconfig:"AUDIT_QUEUE_SIZE" default:"256"`

	MongoURI        string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase   string `envconfig:"MONGODB_DATABASE" default:"catalogsync"`
	MongoCollection string `envconfig:"MONGODB_COLLECTION" default:"audit_events"`

	FlushInterval time.Duration `envconfig:"AUDIT_FLUSH_INTERVAL" default:"10s"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *CatalogDBConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (c *CatalogDBConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Endpoint returns the Admin GraphQL endpoint URL.
func (r *RemoteConfig) Endpoint() string {
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", r.ShopDomain, r.APIVersion)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

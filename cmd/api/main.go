package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalogsync-api/internal/audit"
	"catalogsync-api/internal/cache"
	"catalogsync-api/internal/config"
	"catalogsync-api/internal/handler"
	"catalogsync-api/internal/obs"
	"catalogsync-api/internal/remote"
	"catalogsync-api/internal/repository"
	"catalogsync-api/internal/router"
	"catalogsync-api/internal/service"
)

func main() {
	cfg := config.MustLoad()
	obs.InitLogger(os.Stdout, cfg.App.LogFormat, cfg.App.LogLevel)
	log := obs.Logger

	log.Info("starting service", "service", cfg.App.Name, "version", cfg.App.Version, "environment", cfg.App.Environment)

	// Local catalog
	var (
		db       *repository.Database
		products repository.ProductRepository
		audits   repository.AuditRepository
		checks   []handler.ReadinessCheck
		err      error
	)
	switch cfg.CatalogDB.Type {
	case "memory":
		products = repository.NewMemoryProductRepository()
		audits = repository.NewMemoryAuditRepository()
	case "postgres", "postgresql":
		db, err = repository.OpenPostgres(cfg.CatalogDB.PostgresDSN())
	case "mysql":
		db, err = repository.OpenMySQL(cfg.CatalogDB.MySQLDSN())
	default:
		db, err = repository.OpenSQLite(cfg.CatalogDB.Path)
	}
	if err != nil {
		log.Error("failed to open catalog database", "type", cfg.CatalogDB.Type, "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		products = db.Products()
		audits = db.AuditEvents()
		checks = append(checks, handler.ReadinessCheck{Name: "database", Probe: db.Ping})
		log.Info("catalog database initialized", "dialect", db.Dialect())
	}

	// Audit store
	if cfg.Audit.Store == "mongodb" || cfg.Audit.Store == "mongo" {
		mongoRepo, err := repository.NewMongoDBAuditRepository(
			cfg.Audit.MongoURI,
			cfg.Audit.MongoDatabase,
			cfg.Audit.MongoCollection,
		)
		if err != nil {
			log.Error("failed to initialize MongoDB audit store", "error", err)
			os.Exit(1)
		}
		defer mongoRepo.Close()
		audits = mongoRepo
		log.Info("MongoDB audit store initialized")
	}

	redisCfg := cache.RedisConfig{
		Addr:     cfg.Cache.RedisAddress(),
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	}

	// Cache
	var c cache.Cache
	if cfg.Cache.Type == "redis" {
		redisCache, err := cache.NewRedisCache(redisCfg)
		if err != nil {
			log.Warn("redis cache unavailable, falling back to memory", "error", err)
		} else {
			c = redisCache
		}
	}
	if c == nil {
		c = cache.NewMemoryCache(time.Minute)
	}
	defer c.Close()

	// Audit delivery: dispatcher -> (optional Redis buffer) -> audit store
	var (
		writer      audit.Writer = audit.RepositoryWriter{Repo: audits}
		auditBuffer *cache.RedisAuditBuffer
		pending     handler.PendingCounter
	)
	if cfg.Audit.Buffer == "redis" {
		auditBuffer, err = cache.NewRedisAuditBuffer(redisCfg, cfg.Audit.FlushInterval, audits.InsertAuditEvents)
		if err != nil {
			log.Warn("redis audit buffer unavailable, writing audit events directly", "error", err)
		} else {
			writer = audit.BufferWriter{Buffer: auditBuffer}
			pending = auditBuffer
			log.Info("redis audit buffer initialized")
		}
	}
	dispatcher := audit.NewDispatcher(writer, cfg.Audit.QueueSize)
	dispatcher.Start()

	// Remote catalog
	shop := remote.NewClient(remote.Config{
		Endpoint:    cfg.Remote.Endpoint(),
		AccessToken: cfg.Remote.AccessToken,
		Timeout:     cfg.Remote.Timeout,
		RateLimit:   cfg.Remote.RateLimit,
		RateBurst:   cfg.Remote.RateBurst,
		LocationTTL: cfg.Cache.TTL,
	}, c, nil)

	// Services
	syncService := service.NewSyncService(shop, products, dispatcher)
	productService := service.NewProductService(shop, products, syncService, dispatcher)
	queryService := service.NewQueryService(products, audits)

	r := router.New(router.Config{
		Handler:         handler.New(cfg.App.Name, cfg.App.Version, checks...),
		ProductHandler:  handler.NewProductHandler(syncService, productService, queryService),
		AuditLogHandler: handler.NewAuditLogHandler(queryService),
		AdminHandler:    handler.NewAdminHandler(products, dispatcher, pending, cfg.CatalogDB.Type),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", "addr", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown error", "error", err)
	}

	// Drain queued audit events before the buffer flushes and stores close.
	if err := dispatcher.Close(ctx); err != nil {
		log.Warn("audit queue not fully drained", "error", err, "dropped", dispatcher.Stats().Dropped)
	}
	if auditBuffer != nil {
		log.Info("closing redis audit buffer")
		if err := auditBuffer.Close(); err != nil {
			log.Error("redis audit buffer close error", "error", err)
		}
	}

	log.Info("server stopped")
	fmt.Println("Goodbye!")
}

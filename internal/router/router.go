package router

import (
	"net/http"

	"catalogsync-api/internal/handler"
	"catalogsync-api/internal/metrics"
	"catalogsync-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler         *handler.Handler
	ProductHandler  *handler.ProductHandler
	AuditLogHandler *handler.AuditLogHandler
	AdminHandler    *handler.AdminHandler
	MetricsHandler  http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = metrics.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if cfg.ProductHandler != nil {
			r.Route("/products", func(r chi.Router) {
				r.Get("/", cfg.ProductHandler.List)
				r.Post("/", cfg.ProductHandler.Create)
				r.Post("/sync-all", cfg.ProductHandler.SyncAll)
				r.Post("/bulk-sync", cfg.ProductHandler.BulkSync)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.ProductHandler.Get)
					r.Put("/", cfg.ProductHandler.Update)
					r.Delete("/", cfg.ProductHandler.Delete)
					r.Delete("/local", cfg.ProductHandler.DeleteLocal)
					r.Post("/sync", cfg.ProductHandler.Sync)
					r.Post("/push", cfg.ProductHandler.Push)
				})
			})
		}

		if cfg.AuditLogHandler != nil {
			r.Get("/audit-logs", cfg.AuditLogHandler.List)
		}

		if cfg.AdminHandler != nil {
			r.Get("/admin/stats", cfg.AdminHandler.GetStats)
		}
	})

	return r
}

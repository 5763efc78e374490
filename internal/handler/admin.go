package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"catalogsync-api/internal/audit"
	"catalogsync-api/internal/repository"
	"catalogsync-api/pkg/response"
)

// PendingCounter reports how many audit events wait in a write-behind buffer.
type PendingCounter interface {
	Count(ctx context.Context) (int64, error)
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	products   repository.ProductRepository
	dispatcher *audit.Dispatcher
	buffer     PendingCounter
	dbType     string
	startTime  time.Time
}

// NewAdminHandler creates a new admin handler. dispatcher and buffer may be nil.
func NewAdminHandler(
	products repository.ProductRepository,
	dispatcher *audit.Dispatcher,
	buffer PendingCounter,
	dbType string,
) *AdminHandler {
	return &AdminHandler{
		products:   products,
		dispatcher: dispatcher,
		buffer:     buffer,
		dbType:     dbType,
		startTime:  time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if h.products != nil {
		catalog, err := h.products.GetStats(ctx)
		if err == nil {
			catalog["status"] = "connected"
			stats["catalog"] = catalog
		} else {
			stats["catalog"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	}

	if h.dispatcher != nil {
		stats["audit_queue"] = h.dispatcher.Stats()
	}

	if h.buffer != nil {
		count, err := h.buffer.Count(ctx)
		if err == nil {
			stats["audit_buffer"] = map[string]interface{}{
				"pending_items": count,
				"status":        "connected",
			}
		} else {
			stats["audit_buffer"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["audit_buffer"] = map[string]interface{}{
			"status": "not_configured",
		}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

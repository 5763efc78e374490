package handler

import (
	"net/http"

	"catalogsync-api/internal/service"
	"catalogsync-api/pkg/response"
)

// AuditLogHandler serves the audit trail.
type AuditLogHandler struct {
	queries *service.QueryService
}

// NewAuditLogHandler creates a new audit log handler.
func NewAuditLogHandler(queries *service.QueryService) *AuditLogHandler {
	return &AuditLogHandler{queries: queries}
}

// List handles GET /api/v1/audit-logs
func (h *AuditLogHandler) List(w http.ResponseWriter, r *http.Request) {
	perPage, page, err := pageParams(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	result, err := h.queries.AuditLogs(r.Context(), perPage, page)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, result)
}

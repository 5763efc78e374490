package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalogsync_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "route", "status"},
	)
	syncItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_sync_items_total",
			Help: "Products processed by sync operations, by operation and result.",
		},
		[]string{"operation", "result"},
	)
	remoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_remote_requests_total",
			Help: "Requests sent to the remote platform, by operation and result.",
		},
		[]string{"operation", "result"},
	)
	auditEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogsync_audit_events_total",
			Help: "Audit events by delivery result (written, failed, dropped).",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(syncItemsTotal)
	prometheus.MustRegister(remoteRequestsTotal)
	prometheus.MustRegister(auditEventsTotal)
}

// RecordRequest records metrics for one HTTP request.
func RecordRequest(method, route string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// RecordSyncItem counts one product handled by a sync operation.
func RecordSyncItem(operation string, ok bool) {
	syncItemsTotal.WithLabelValues(operation, result(ok)).Inc()
}

// RecordRemoteRequest counts one remote platform call.
func RecordRemoteRequest(operation string, ok bool) {
	remoteRequestsTotal.WithLabelValues(operation, result(ok)).Inc()
}

// RecordAuditEvent counts one audit event outcome.
func RecordAuditEvent(outcome string) {
	auditEventsTotal.WithLabelValues(outcome).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// classifyStatus maps an HTTP status code to its class.
func classifyStatus(statusCode int) string {
	if statusCode >= 100 && statusCode < 600 {
		return strconv.Itoa(statusCode/100) + "xx"
	}
	return "unknown"
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/flowhook/common/middleware"
	"github.com/telhawk-systems/flowhook/internal/handlers"
)

// NewRouter constructs a ServeMux with flowhook routes registered.
func NewRouter(h *handlers.Handler, cors middleware.CORSConfig, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Provider webhooks
	mux.HandleFunc("POST /webhooks/{provider}", h.HandleWebhook)

	// Bounded workspace logs
	mux.HandleFunc("GET /webhook-logs", h.ListWebhookLogs)
	mux.HandleFunc("POST /webhook-logs", h.SubmitWebhookLog)
	mux.HandleFunc("GET /api-call-logs", h.ListAPICallLogs)
	mux.HandleFunc("POST /api-call-logs", h.SubmitAPICallLog)

	// Durable history and cross-replica stats
	mux.HandleFunc("GET /webhook-logs/history", h.WebhookLogHistory)
	mux.HandleFunc("GET /api-call-logs/history", h.APICallLogHistory)
	mux.HandleFunc("GET /webhook-stats", h.WorkspaceStats)

	// Health endpoints
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	if logger == nil {
		logger = slog.Default()
	}

	var handler http.Handler = mux
	handler = middleware.AccessLog(logger)(handler)
	handler = middleware.CORS(cors)(handler)
	return middleware.RequestID(handler)
}

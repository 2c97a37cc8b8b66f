package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/telhawk-systems/flowhook/internal/models"
)

var (
	// Webhook ingestion metrics
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowhook_webhooks_total",
			Help: "Total number of inbound webhooks by route label and matched provider",
		},
		[]string{"route", "provider"},
	)

	WebhookBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowhook_webhook_bytes_total",
			Help: "Total bytes of webhook payloads received",
		},
	)

	RejectedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowhook_rejected_requests_total",
			Help: "Total number of rejected ingestion requests",
		},
		[]string{"endpoint", "reason"},
	)

	// Normalization metrics
	NormalizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowhook_normalization_duration_seconds",
			Help:    "Duration of payload normalization in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Log store metrics
	LogAppends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowhook_log_appends_total",
			Help: "Total number of records appended to bounded workspace logs",
		},
		[]string{"type"},
	)

	// Durable history metrics
	RepositoryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowhook_repository_duration_seconds",
			Help:    "Duration of durable log writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RepositoryErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowhook_repository_errors_total",
			Help: "Total number of durable log write errors",
		},
	)

	// Flow dispatch metrics
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowhook_dispatch_total",
			Help: "Total number of flow dispatch attempts",
		},
		[]string{"flow_context", "status"},
	)

	// Workspace stats metrics
	StatsFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowhook_stats_flushes_total",
			Help: "Total number of workspace stats batch flushes by status",
		},
		[]string{"status"},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowhook_rate_limit_hits_total",
			Help: "Total number of requests rejected by the workspace rate limiter",
		},
	)

	RateLimitErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowhook_rate_limit_errors_total",
			Help: "Total number of rate limiter backend errors (requests allowed)",
		},
	)
)

// RouteOther is the route label for path segments that name no known provider.
const RouteOther = "other"

// RouteLabel maps a webhook path segment onto a fixed label set so callers
// cannot mint new series.
func RouteLabel(route string) string {
	switch models.FlowContext(route) {
	case models.FlowContextChatwoot, models.FlowContextDialogy, models.FlowContextEvolution:
		return route
	default:
		return RouteOther
	}
}

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/telhawk-systems/flowhook/common/httputil"
	"github.com/telhawk-systems/flowhook/common/logging"
	"github.com/telhawk-systems/flowhook/common/messaging"
	"github.com/telhawk-systems/flowhook/internal/models"
	"github.com/telhawk-systems/flowhook/internal/ratelimit"
	"github.com/telhawk-systems/flowhook/internal/repository"
	"github.com/telhawk-systems/flowhook/internal/service"
	"github.com/telhawk-systems/flowhook/internal/wsstats"
)

// IngestService is the subset of service.IngestService used by the handlers.
type IngestService interface {
	IngestWebhook(ctx context.Context, in service.WebhookInput) (*models.CanonicalEvent, error)
	RecordLog(ctx context.Context, typ models.LogType, sub models.LogSubmission) (models.LogRecord, error)
	ListLogs(typ models.LogType, workspaceID string) ([]models.LogRecord, error)
	History(ctx context.Context, typ models.LogType, workspaceID string, limit int) ([]models.LogRecord, error)
	WorkspaceStats(ctx context.Context, workspaceID string) (*wsstats.Stats, error)
	GetStats() models.IngestionStats
	ActiveWorkspaces() int
}

// DefaultMaxBodySize caps request bodies when no limit is configured.
const DefaultMaxBodySize = 1 << 20

type Handler struct {
	service     IngestService
	limiter     ratelimit.RateLimiter
	broker      messaging.Client
	logger      *logging.Logger
	maxBodySize int64
}

type Option func(*Handler)

func WithRateLimiter(l ratelimit.RateLimiter) Option {
	return func(h *Handler) { h.limiter = l }
}

// WithBroker reports broker health on /readyz.
func WithBroker(c messaging.Client) Option {
	return func(h *Handler) { h.broker = c }
}

func WithLogger(l *logging.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

func WithMaxBodySize(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodySize = n
		}
	}
}

func NewHandler(svc IngestService, opts ...Option) *Handler {
	h := &Handler{
		service:     svc,
		limiter:     &ratelimit.NoOpRateLimiter{},
		logger:      logging.Default(),
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":            "ready",
		"stats":             h.service.GetStats(),
		"active_workspaces": h.service.ActiveWorkspaces(),
	}
	if h.broker != nil {
		resp["broker"] = messaging.CheckClientHealth(h.broker)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// writeServiceError maps service errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrMissingWorkspace):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnknownLogType):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrNotConfigured), errors.Is(err, service.ErrStatsDisabled):
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			logging.Path(r.URL.Path),
			logging.Error(err),
		)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/telhawk-systems/flowhook/common/httputil"
	"github.com/telhawk-systems/flowhook/common/logging"
	"github.com/telhawk-systems/flowhook/internal/metrics"
	"github.com/telhawk-systems/flowhook/internal/models"
	"github.com/telhawk-systems/flowhook/internal/normalizer"
	"github.com/telhawk-systems/flowhook/internal/service"
)

// WebhookReceived is the acknowledgement text returned to providers.
const WebhookReceived = "Webhook received"

// HandleWebhook accepts POST /webhooks/{provider}?workspaceId=&nodeId=.
// The provider path segment is a label only; detection is payload-driven.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	route := r.PathValue("provider")
	query := r.URL.Query()
	workspaceID := query.Get("workspaceId")
	if workspaceID == "" {
		metrics.RejectedRequests.WithLabelValues("webhook", "missing_workspace").Inc()
		httputil.WriteError(w, http.StatusBadRequest, service.ErrMissingWorkspace.Error())
		return
	}

	allowed, err := h.limiter.Allow(r.Context(), workspaceID)
	if err != nil {
		// Limiter errors fail open.
		metrics.RateLimitErrors.Inc()
		h.logger.WarnContext(r.Context(), "rate limiter unavailable",
			logging.WorkspaceID(workspaceID),
			logging.Error(err),
		)
	} else if !allowed {
		metrics.RejectedRequests.WithLabelValues("webhook", "rate_limited").Inc()
		httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := httputil.ReadBody(w, r, h.maxBodySize)
	if err != nil {
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			metrics.RejectedRequests.WithLabelValues("webhook", "too_large").Inc()
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		// Unreadable bodies are normalized like empty ones.
		h.logger.WarnContext(r.Context(), "failed to read webhook body",
			logging.WorkspaceID(workspaceID),
			logging.Error(err),
		)
		body = nil
	}

	headers := r.Header.Clone()
	if r.Host != "" && headers.Get("Host") == "" {
		headers.Set("Host", r.Host)
	}

	event, err := h.service.IngestWebhook(r.Context(), service.WebhookInput{
		WorkspaceID: workspaceID,
		NodeID:      query.Get("nodeId"),
		Route:       route,
		Request: normalizer.Request{
			Body:       body,
			Headers:    headers,
			RemoteAddr: r.RemoteAddr,
			Method:     r.Method,
			URL:        r.URL.RequestURI(),
		},
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.WebhookAck{
		Message:     WebhookReceived,
		FlowContext: event.FlowContext,
		SessionKey:  event.SessionKey,
	})
}

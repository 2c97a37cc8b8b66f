package handlers

import (
	"errors"
	"net/http"

	"github.com/telhawk-systems/flowhook/common/httputil"
	"github.com/telhawk-systems/flowhook/internal/metrics"
	"github.com/telhawk-systems/flowhook/internal/models"
	"github.com/telhawk-systems/flowhook/internal/repository"
)

// Confirmation messages for the submission endpoints.
const (
	WebhookLogRecorded = "Webhook log recorded"
	APICallLogRecorded = "API call log recorded"
)

func (h *Handler) ListWebhookLogs(w http.ResponseWriter, r *http.Request) {
	h.listLogs(w, r, models.LogTypeWebhook)
}

func (h *Handler) SubmitWebhookLog(w http.ResponseWriter, r *http.Request) {
	h.submitLog(w, r, models.LogTypeWebhook, WebhookLogRecorded)
}

func (h *Handler) ListAPICallLogs(w http.ResponseWriter, r *http.Request) {
	h.listLogs(w, r, models.LogTypeAPICall)
}

func (h *Handler) SubmitAPICallLog(w http.ResponseWriter, r *http.Request) {
	h.submitLog(w, r, models.LogTypeAPICall, APICallLogRecorded)
}

func (h *Handler) WebhookLogHistory(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, models.LogTypeWebhook)
}

func (h *Handler) APICallLogHistory(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, models.LogTypeAPICall)
}

// WorkspaceStats serves GET /webhook-stats?workspaceId=.
func (h *Handler) WorkspaceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.WorkspaceStats(r.Context(), r.URL.Query().Get("workspaceId"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request, typ models.LogType) {
	records, err := h.service.ListLogs(typ, r.URL.Query().Get("workspaceId"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

func (h *Handler) submitLog(w http.ResponseWriter, r *http.Request, typ models.LogType, confirmation string) {
	var sub models.LogSubmission
	if err := httputil.DecodeJSON(w, r, h.maxBodySize, &sub); err != nil {
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			metrics.RejectedRequests.WithLabelValues(string(typ), "too_large").Inc()
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		metrics.RejectedRequests.WithLabelValues(string(typ), "invalid_json").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if _, err := h.service.RecordLog(r.Context(), typ, sub); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, confirmation)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request, typ models.LogType) {
	q := r.URL.Query()
	limit := httputil.ParseIntParam(q.Get("limit"), repository.DefaultHistoryLimit)

	records, err := h.service.History(r.Context(), typ, q.Get("workspaceId"), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/flowhook/internal/logstore"
	"github.com/telhawk-systems/flowhook/internal/models"
	"github.com/telhawk-systems/flowhook/internal/normalizer"
	"github.com/telhawk-systems/flowhook/internal/repository"
	"github.com/telhawk-systems/flowhook/internal/service"
	"github.com/telhawk-systems/flowhook/internal/wsstats"
)

type mockLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (m *mockLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.keys = append(m.keys, key)
	return m.allowed, m.err
}

func (m *mockLimiter) Close() error { return nil }

// mockIngestService lets tests force error paths.
type mockIngestService struct {
	IngestService
	historyErr error
	statsErr   error
}

func (m *mockIngestService) History(context.Context, models.LogType, string, int) ([]models.LogRecord, error) {
	return nil, m.historyErr
}

func (m *mockIngestService) WorkspaceStats(context.Context, string) (*wsstats.Stats, error) {
	return nil, m.statsErr
}

func newService() *service.IngestService {
	clock := func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return service.NewIngestService(
		normalizer.New(normalizer.WithClock(clock)),
		logstore.New(0), logstore.New(0),
		service.WithClock(clock),
	)
}

func postWebhook(h *Handler, provider, query, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+provider+query, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.SetPathValue("provider", provider)
	rr := httptest.NewRecorder()
	h.HandleWebhook(rr, req)
	return rr
}

func TestHandleWebhook_Chatwoot(t *testing.T) {
	h := NewHandler(newService())

	body := `{"event":"message_created","message_type":"incoming","content":"  Hello  ","conversation":{"id":42}}`
	rr := postWebhook(h, "chatwoot", "?workspaceId=ws-1&nodeId=n-1", body)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Webhook received","flow_context":"chatwoot","session_key_identifier":"chatwoot_conv_42"}`, rr.Body.String())
}

func TestHandleWebhook_RecordsCanonicalEvent(t *testing.T) {
	svc := newService()
	h := NewHandler(svc)

	body := `{"data":{"key":{"remoteJid":"5511999999999@s.whatsapp.net"},"message":{"conversation":"Oi"}}}`
	rr := postWebhook(h, "evolution", "?workspaceId=ws-1&nodeId=n-1", body)
	require.Equal(t, http.StatusOK, rr.Code)

	logs, err := svc.ListLogs(models.LogTypeWebhook, "ws-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "n-1", logs[0].NodeID)

	var event models.CanonicalEvent
	require.NoError(t, json.Unmarshal(logs[0].Details, &event))
	assert.Equal(t, http.MethodPost, event.Method)
	assert.Equal(t, "/webhooks/evolution?workspaceId=ws-1&nodeId=n-1", event.URL)
	assert.Equal(t, "192.0.2.1", event.IP)
	assert.Equal(t, "example.com", event.Headers["host"])
	assert.Equal(t, "application/json", event.Headers["content-type"])
	require.NotNil(t, event.ExtractedMessage)
	assert.Equal(t, "Oi", *event.ExtractedMessage)
	assert.JSONEq(t, body, string(event.Payload))
}

func TestHandleWebhook_InvalidJSONIsAccepted(t *testing.T) {
	h := NewHandler(newService())

	rr := postWebhook(h, "evolution", "?workspaceId=ws-1", "not json")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Webhook received","flow_context":"evolution","session_key_identifier":null}`, rr.Body.String())
}

func TestHandleWebhook_MissingWorkspace(t *testing.T) {
	h := NewHandler(newService())

	rr := postWebhook(h, "chatwoot", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "workspaceId")
}

func TestHandleWebhook_RateLimited(t *testing.T) {
	limiter := &mockLimiter{allowed: false}
	h := NewHandler(newService(), WithRateLimiter(limiter))

	rr := postWebhook(h, "chatwoot", "?workspaceId=ws-9", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, []string{"ws-9"}, limiter.keys)
}

func TestHandleWebhook_LimiterErrorFailsOpen(t *testing.T) {
	h := NewHandler(newService(), WithRateLimiter(&mockLimiter{err: errors.New("redis down")}))

	rr := postWebhook(h, "chatwoot", "?workspaceId=ws", `{}`)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleWebhook_BodyTooLarge(t *testing.T) {
	h := NewHandler(newService(), WithMaxBodySize(16))

	rr := postWebhook(h, "chatwoot", "?workspaceId=ws", `{"content":"this body is longer than sixteen bytes"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestLogEndpoints(t *testing.T) {
	tests := []struct {
		name         string
		routes       func(h *Handler) (submit, list http.HandlerFunc)
		confirmation string
	}{
		{
			name: "webhook logs",
			routes: func(h *Handler) (http.HandlerFunc, http.HandlerFunc) {
				return h.SubmitWebhookLog, h.ListWebhookLogs
			},
			confirmation: WebhookLogRecorded,
		},
		{
			name: "api call logs",
			routes: func(h *Handler) (http.HandlerFunc, http.HandlerFunc) {
				return h.SubmitAPICallLog, h.ListAPICallLogs
			},
			confirmation: APICallLogRecorded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(newService())
			submit, list := tt.routes(h)

			for n := 1; n <= 3; n++ {
				body := fmt.Sprintf(`{"workspaceId":"ws-1","nodeId":"node-a","details":{"n":%d}}`, n)
				req := httptest.NewRequest(http.MethodPost, "/logs", strings.NewReader(body))
				rr := httptest.NewRecorder()
				submit(rr, req)
				require.Equal(t, http.StatusOK, rr.Code)
				assert.JSONEq(t, `{"message":"`+tt.confirmation+`"}`, rr.Body.String())
			}

			req := httptest.NewRequest(http.MethodGet, "/logs?workspaceId=ws-1", nil)
			rr := httptest.NewRecorder()
			list(rr, req)
			require.Equal(t, http.StatusOK, rr.Code)

			var records []models.LogRecord
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
			require.Len(t, records, 3)
			assert.JSONEq(t, `{"n":3}`, string(records[0].Details))
			assert.JSONEq(t, `{"n":1}`, string(records[2].Details))
			assert.Equal(t, "node-a", records[0].NodeID)
		})
	}
}

func TestListLogs_EmptyWorkspaceReturnsArray(t *testing.T) {
	h := NewHandler(newService())

	req := httptest.NewRequest(http.MethodGet, "/webhook-logs?workspaceId=nobody", nil)
	rr := httptest.NewRecorder()
	h.ListWebhookLogs(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestListLogs_MissingWorkspace(t *testing.T) {
	h := NewHandler(newService())

	req := httptest.NewRequest(http.MethodGet, "/webhook-logs", nil)
	rr := httptest.NewRecorder()
	h.ListWebhookLogs(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSubmitLog_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid JSON", `{nope`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
		{"missing workspace", `{"details":{"a":1}}`, http.StatusBadRequest},
		{"valid", `{"workspaceId":"ws","details":{"a":1}}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(newService())
			req := httptest.NewRequest(http.MethodPost, "/api-call-logs", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			h.SubmitAPICallLog(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestHistory_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not configured", repository.ErrNotConfigured, http.StatusServiceUnavailable},
		{"missing workspace", service.ErrMissingWorkspace, http.StatusBadRequest},
		{"database failure", errors.New("connection reset"), http.StatusInternalServerError},
		{"ok", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&mockIngestService{historyErr: tt.err})
			req := httptest.NewRequest(http.MethodGet, "/webhook-logs/history?workspaceId=ws&limit=5", nil)
			rr := httptest.NewRecorder()
			h.WebhookLogHistory(rr, req)
			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusInternalServerError {
				assert.NotContains(t, rr.Body.String(), "connection reset")
			}
		})
	}
}

func TestWorkspaceStats_Disabled(t *testing.T) {
	h := NewHandler(newService())

	req := httptest.NewRequest(http.MethodGet, "/webhook-stats?workspaceId=ws", nil)
	rr := httptest.NewRecorder()
	h.WorkspaceStats(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestWorkspaceStats_Error(t *testing.T) {
	h := NewHandler(&mockIngestService{statsErr: errors.New("redis down")})

	req := httptest.NewRequest(http.MethodGet, "/webhook-stats?workspaceId=ws", nil)
	rr := httptest.NewRecorder()
	h.WorkspaceStats(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHealthAndReady(t *testing.T) {
	svc := newService()
	h := NewHandler(svc)
	postWebhook(h, "chatwoot", "?workspaceId=ws", `{}`)

	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Status           string                `json:"status"`
		Stats            models.IngestionStats `json:"stats"`
		ActiveWorkspaces int                   `json:"active_workspaces"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, int64(1), resp.Stats.TotalEvents)
	assert.Equal(t, 1, resp.ActiveWorkspaces)
}

package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/flowhook/internal/models"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:8088/")

	assert.Equal(t, "http://localhost:8088", c.baseURL)
	assert.Equal(t, 10*time.Second, c.client.Timeout)
}

func TestSendWebhook_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/webhooks/chatwoot", r.URL.Path)
		assert.Equal(t, "ws-1", r.URL.Query().Get("workspaceId"))
		assert.Equal(t, "node-9", r.URL.Query().Get("nodeId"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"event":"message_created"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Webhook received","flow_context":"chatwoot","session_key_identifier":"42"}`))
	}))
	defer server.Close()

	ack, err := New(server.URL).SendWebhook(context.Background(), "chatwoot", "ws-1", "node-9", []byte(`{"event":"message_created"}`))
	require.NoError(t, err)
	assert.Equal(t, "Webhook received", ack.Message)
	assert.Equal(t, models.FlowContextChatwoot, ack.FlowContext)
	require.NotNil(t, ack.SessionKey)
	assert.Equal(t, "42", *ack.SessionKey)
}

func TestSendWebhook_OmitsEmptyNodeID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("nodeId"))
		w.Write([]byte(`{"message":"Webhook received","flow_context":"evolution","session_key_identifier":null}`))
	}))
	defer server.Close()

	ack, err := New(server.URL).SendWebhook(context.Background(), "evolution", "ws-1", "", []byte(`{}`))
	require.NoError(t, err)
	assert.Nil(t, ack.SessionKey)
}

func TestSendWebhook_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"workspaceId is required"}`))
	}))
	defer server.Close()

	_, err := New(server.URL).SendWebhook(context.Background(), "chatwoot", "", "", []byte(`{}`))
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "workspaceId is required", apiErr.Message)
	assert.Contains(t, err.Error(), "400")
}

func TestLogs(t *testing.T) {
	tests := []struct {
		name string
		typ  models.LogType
		path string
	}{
		{name: "webhook", typ: models.LogTypeWebhook, path: "/webhook-logs"},
		{name: "api call", typ: models.LogTypeAPICall, path: "/api-call-logs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, tt.path, r.URL.Path)
				assert.Equal(t, "ws-1", r.URL.Query().Get("workspaceId"))
				json.NewEncoder(w).Encode([]models.LogRecord{
					{ID: "b", WorkspaceID: "ws-1", Type: tt.typ, Details: json.RawMessage(`{}`)},
					{ID: "a", WorkspaceID: "ws-1", Type: tt.typ, Details: json.RawMessage(`{}`)},
				})
			}))
			defer server.Close()

			records, err := New(server.URL).Logs(context.Background(), tt.typ, "ws-1")
			require.NoError(t, err)
			require.Len(t, records, 2)
			assert.Equal(t, "b", records[0].ID)
		})
	}
}

func TestHistory_SendsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhook-logs/history", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	records, err := New(server.URL).History(context.Background(), models.LogTypeWebhook, "ws-1", 25)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSubmitLog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api-call-logs", r.URL.Path)

		var sub models.LogSubmission
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sub))
		assert.Equal(t, "ws-1", sub.WorkspaceID)
		assert.JSONEq(t, `{"status":200}`, string(sub.Details))

		w.Write([]byte(`{"message":"API call log recorded"}`))
	}))
	defer server.Close()

	err := New(server.URL).SubmitLog(context.Background(), models.LogTypeAPICall, models.LogSubmission{
		WorkspaceID: "ws-1",
		Details:     json.RawMessage(`{"status":200}`),
	})
	require.NoError(t, err)
}

func TestStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhook-stats", r.URL.Path)
		w.Write([]byte(`{"workspace_id":"ws-1","total_events":7}`))
	}))
	defer server.Close()

	stats, err := New(server.URL).Stats(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Equal(t, "ws-1", stats.WorkspaceID)
	assert.Equal(t, int64(7), stats.TotalEvents)
}

func TestConnectionError(t *testing.T) {
	_, err := New("http://127.0.0.1:1").Logs(context.Background(), models.LogTypeWebhook, "ws-1")
	assert.Error(t, err)
}

// Package client is a small HTTP client for the flowhook API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/telhawk-systems/flowhook/internal/models"
	"github.com/telhawk-systems/flowhook/internal/wsstats"
)

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SendWebhook posts body to /webhooks/{provider} as if it came from a provider.
func (c *Client) SendWebhook(ctx context.Context, provider, workspaceID, nodeID string, body []byte) (*models.WebhookAck, error) {
	q := url.Values{}
	q.Set("workspaceId", workspaceID)
	if nodeID != "" {
		q.Set("nodeId", nodeID)
	}

	var ack models.WebhookAck
	path := "/webhooks/" + url.PathEscape(provider)
	if err := c.do(ctx, http.MethodPost, path, q, body, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// Logs returns the in-memory log for a workspace, most recent first.
func (c *Client) Logs(ctx context.Context, typ models.LogType, workspaceID string) ([]models.LogRecord, error) {
	q := url.Values{"workspaceId": {workspaceID}}
	var records []models.LogRecord
	if err := c.do(ctx, http.MethodGet, logsPath(typ), q, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// History returns persisted log records for a workspace.
func (c *Client) History(ctx context.Context, typ models.LogType, workspaceID string, limit int) ([]models.LogRecord, error) {
	q := url.Values{"workspaceId": {workspaceID}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var records []models.LogRecord
	if err := c.do(ctx, http.MethodGet, logsPath(typ)+"/history", q, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SubmitLog posts a record to the log submission endpoint for typ.
func (c *Client) SubmitLog(ctx context.Context, typ models.LogType, sub models.LogSubmission) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, logsPath(typ), nil, body, nil)
}

// Stats returns aggregated webhook stats for a workspace.
func (c *Client) Stats(ctx context.Context, workspaceID string) (*wsstats.Stats, error) {
	q := url.Values{"workspaceId": {workspaceID}}
	var stats wsstats.Stats
	if err := c.do(ctx, http.MethodGet, "/webhook-stats", q, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func logsPath(typ models.LogType) string {
	if typ == models.LogTypeAPICall {
		return "/api-call-logs"
	}
	return "/webhook-logs"
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

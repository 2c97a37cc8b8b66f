package models

import (
	"encoding/json"
	"time"
)

// LogType distinguishes the two retained log families.
type LogType string

const (
	LogTypeWebhook LogType = "webhook"
	LogTypeAPICall LogType = "api-call"
)

// LogRecord is one retained entry for a workspace.
type LogRecord struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	Type        LogType         `json:"type"`
	NodeID      string          `json:"node_id,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Details     json.RawMessage `json:"details"`
}

// LogSubmission is the body accepted by the log submission endpoints.
type LogSubmission struct {
	WorkspaceID string          `json:"workspaceId"`
	NodeID      string          `json:"nodeId,omitempty"`
	Details     json.RawMessage `json:"details"`
}

// WebhookAck is returned to providers after a webhook is accepted.
type WebhookAck struct {
	Message     string      `json:"message"`
	FlowContext FlowContext `json:"flow_context"`
	SessionKey  *string     `json:"session_key_identifier"`
}

// IngestionStats are process-local counters reported on /readyz.
type IngestionStats struct {
	TotalEvents      int64     `json:"total_events"`
	TotalBytes       int64     `json:"total_bytes"`
	RoutedEvents     int64     `json:"routed_events"`
	UnroutedEvents   int64     `json:"unrouted_events"`
	DispatchFailures int64     `json:"dispatch_failures"`
	LastEvent        time.Time `json:"last_event"`
}

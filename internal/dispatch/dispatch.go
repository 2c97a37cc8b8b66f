// Package dispatch hands normalized webhooks to the flow engine.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/telhawk-systems/flowhook/common/messaging"
	"github.com/telhawk-systems/flowhook/common/middleware"
	"github.com/telhawk-systems/flowhook/internal/models"
)

// Trigger is the message the flow engine consumes for one inbound event.
type Trigger struct {
	WorkspaceID string                 `json:"workspace_id"`
	NodeID      string                 `json:"node_id,omitempty"`
	SessionKey  string                 `json:"session_key"`
	Message     *string                `json:"message"`
	FlowContext models.FlowContext     `json:"flow_context"`
	Event       *models.CanonicalEvent `json:"event"`
}

// NewTrigger builds a trigger from an event that carries a session key.
func NewTrigger(workspaceID, nodeID string, ev *models.CanonicalEvent) Trigger {
	t := Trigger{
		WorkspaceID: workspaceID,
		NodeID:      nodeID,
		Message:     ev.ExtractedMessage,
		FlowContext: ev.FlowContext,
		Event:       ev,
	}
	if ev.SessionKey != nil {
		t.SessionKey = *ev.SessionKey
	}
	return t
}

// Dispatcher delivers triggers to the flow engine.
type Dispatcher interface {
	Dispatch(ctx context.Context, t Trigger) error
}

// Publisher dispatches triggers as JSON on flows.inbound.<flow_context>.
type Publisher struct {
	pub messaging.Publisher
}

func NewPublisher(pub messaging.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

func (p *Publisher) Dispatch(ctx context.Context, t Trigger) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}

	meta := map[string]string{messaging.HeaderWorkspaceID: t.WorkspaceID}
	if id := middleware.GetRequestID(ctx); id != "" {
		meta[messaging.HeaderRequestID] = id
	}

	msg := &messaging.Message{
		Subject:  messaging.FlowInboundSubject(string(t.FlowContext)),
		Data:     data,
		Metadata: meta,
	}
	if err := p.pub.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("publish trigger to %s: %w", msg.Subject, err)
	}
	return nil
}

// Noop discards triggers. Used when no broker is configured.
type Noop struct{}

func (Noop) Dispatch(context.Context, Trigger) error { return nil }

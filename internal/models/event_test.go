package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_FlowContext(t *testing.T) {
	tests := []struct {
		provider Provider
		want     FlowContext
		name     string
	}{
		{ProviderChatwoot, FlowContextChatwoot, "chatwoot"},
		{ProviderDialogy, FlowContextDialogy, "dialogy"},
		{ProviderEvolution, FlowContextEvolution, "evolution"},
		{ProviderUnrecognized, FlowContextEvolution, "unrecognized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.provider.FlowContext())
			assert.Equal(t, tt.name, tt.provider.String())
		})
	}
}

func TestCanonicalEvent_JSONShape(t *testing.T) {
	key := "chatwoot_conv_42"
	msg := "Hi"
	ev := &CanonicalEvent{
		Timestamp:        "2026-01-02T03:04:05.000Z",
		Method:           "POST",
		URL:              "/webhooks/chatwoot?workspaceId=ws",
		Headers:          map[string]string{"content-type": "application/json"},
		IP:               "10.0.0.1",
		ExtractedMessage: &msg,
		SessionKey:       &key,
		FlowContext:      FlowContextChatwoot,
		Payload:          json.RawMessage(`{"event":"message_created"}`),
		Provider:         ProviderChatwoot,
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))

	for _, name := range []string{"timestamp", "method", "url", "headers", "ip", "extractedMessage", "session_key_identifier", "flow_context", "payload"} {
		assert.Contains(t, fields, name)
	}
	assert.Len(t, fields, 9, "provider variant must not leak onto the wire")
	assert.JSONEq(t, `"chatwoot_conv_42"`, string(fields["session_key_identifier"]))
}

func TestCanonicalEvent_NullCorrelationFields(t *testing.T) {
	ev := &CanonicalEvent{FlowContext: FlowContextEvolution, Payload: json.RawMessage(`{}`)}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "null", string(fields["extractedMessage"]))
	assert.Equal(t, "null", string(fields["session_key_identifier"]))
	assert.False(t, ev.HasSession())
}

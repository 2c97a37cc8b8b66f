package models

import "encoding/json"

// FlowContext is the provider label carried on the wire.
type FlowContext string

const (
	FlowContextEvolution FlowContext = "evolution"
	FlowContextChatwoot  FlowContext = "chatwoot"
	FlowContextDialogy   FlowContext = "dialogy"
)

// Provider identifies which signature claimed an inbound payload.
// Unrecognized payloads keep the evolution flow context on the wire.
type Provider int

const (
	ProviderUnrecognized Provider = iota
	ProviderChatwoot
	ProviderDialogy
	ProviderEvolution
)

func (p Provider) String() string {
	switch p {
	case ProviderChatwoot:
		return "chatwoot"
	case ProviderDialogy:
		return "dialogy"
	case ProviderEvolution:
		return "evolution"
	default:
		return "unrecognized"
	}
}

// FlowContext maps the variant to its wire value.
func (p Provider) FlowContext() FlowContext {
	switch p {
	case ProviderChatwoot:
		return FlowContextChatwoot
	case ProviderDialogy:
		return FlowContextDialogy
	case ProviderEvolution, ProviderUnrecognized:
		return FlowContextEvolution
	default:
		return FlowContextEvolution
	}
}

// UnparsedPayloadNote accompanies bodies that were not valid JSON.
const UnparsedPayloadNote = "Payload was not valid JSON or was empty/unreadable"

// UnknownIP is recorded when neither the connection nor X-Forwarded-For
// yields an address.
const UnknownIP = "unknown IP"

// CanonicalEvent is the provider-agnostic form of one inbound webhook.
// It is never mutated after the normalizer returns it.
type CanonicalEvent struct {
	Timestamp        string            `json:"timestamp"`
	Method           string            `json:"method"`
	URL              string            `json:"url"`
	Headers          map[string]string `json:"headers"`
	IP               string            `json:"ip"`
	ExtractedMessage *string           `json:"extractedMessage"`
	SessionKey       *string           `json:"session_key_identifier"`
	FlowContext      FlowContext       `json:"flow_context"`
	Payload          json.RawMessage   `json:"payload"`

	// Provider is not serialized; consumers switch on it instead of
	// re-deriving the match from FlowContext.
	Provider Provider `json:"-"`
}

// RawTextPayload wraps a body that could not be parsed as JSON.
type RawTextPayload struct {
	RawText string `json:"raw_text"`
	Message string `json:"message"`
}

// HasSession reports whether the event can be routed to a flow session.
func (e *CanonicalEvent) HasSession() bool {
	return e != nil && e.SessionKey != nil && *e.SessionKey != ""
}

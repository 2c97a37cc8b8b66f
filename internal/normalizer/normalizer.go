// Package normalizer converts inbound chat-provider webhooks into
// models.CanonicalEvent values.
//
// # Provider detection
//
// Detection runs an ordered list of Matchers against the extraction root of
// the payload; the first matcher to claim it wins. The default order is
//
//  1. Chatwoot  - event "message_created", conversation.id, message_type "incoming"
//  2. Dialogy   - event "message.created", conversation.id
//  3. Evolution - non-empty data.key.remoteJid
//
// so a payload that satisfies both Chatwoot and Dialogy resolves to Chatwoot.
// Payloads no matcher claims are tagged ProviderUnrecognized and carry the
// evolution flow context with null session key and message.
//
// # Extraction root
//
// Some providers wrap a single event in a one-element array. When the body is
// an array whose first element is an object, that element is the root.
//
// Normalize never fails: bodies that are not valid JSON are wrapped in a
// models.RawTextPayload and produce an event with null correlation fields.
package normalizer

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/telhawk-systems/flowhook/internal/models"
)

// TimestampFormat is ISO-8601 with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Request is the raw inbound webhook as seen by the HTTP layer.
type Request struct {
	Body       []byte
	Headers    http.Header
	RemoteAddr string
	Method     string
	URL        string
}

// Normalizer turns Requests into CanonicalEvents. It holds no mutable state
// and is safe for concurrent use.
type Normalizer struct {
	registry *Registry
	now      func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

// WithRegistry replaces the default matcher order.
func WithRegistry(r *Registry) Option {
	return func(n *Normalizer) {
		n.registry = r
	}
}

// New constructs a Normalizer using DefaultMatchers unless overridden.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		registry: NewRegistry(DefaultMatchers()...),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize builds the canonical event for req.
func (n *Normalizer) Normalize(req Request) *models.CanonicalEvent {
	event := &models.CanonicalEvent{
		Timestamp:   n.now().UTC().Format(TimestampFormat),
		Method:      req.Method,
		URL:         req.URL,
		Headers:     flattenHeaders(req.Headers),
		IP:          resolveIP(req.RemoteAddr, req.Headers),
		FlowContext: models.FlowContextEvolution,
		Provider:    models.ProviderUnrecognized,
	}

	if !json.Valid(req.Body) {
		event.Payload = rawTextPayload(req.Body)
		return event
	}

	var compacted bytes.Buffer
	if err := json.Compact(&compacted, req.Body); err != nil {
		event.Payload = rawTextPayload(req.Body)
		return event
	}
	event.Payload = json.RawMessage(compacted.Bytes())

	root, ok := extractionRoot(event.Payload)
	if !ok {
		return event
	}

	if match, ok := n.registry.Find(root); ok {
		key := match.SessionKey
		event.Provider = match.Provider
		event.FlowContext = match.Provider.FlowContext()
		event.SessionKey = &key
		event.ExtractedMessage = match.Message
	}

	return event
}

// extractionRoot returns the object signatures are evaluated against.
func extractionRoot(payload json.RawMessage) (Object, bool) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil || len(items) == 0 {
			return nil, false
		}
		return ParseObject(items[0])
	}
	return ParseObject(trimmed)
}

func rawTextPayload(body []byte) json.RawMessage {
	data, err := json.Marshal(models.RawTextPayload{
		RawText: string(body),
		Message: models.UnparsedPayloadNote,
	})
	if err != nil {
		return json.RawMessage(`null`)
	}
	return data
}

// flattenHeaders lower-cases header names and joins repeated values.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	return out
}

// resolveIP prefers the connection address, then the first X-Forwarded-For
// hop, then models.UnknownIP.
func resolveIP(remoteAddr string, h http.Header) string {
	if remoteAddr != "" {
		if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
			return host
		}
		return remoteAddr
	}
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	return models.UnknownIP
}

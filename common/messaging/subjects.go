package messaging

// Subject constants for the flow hand-off bus.
// Follow the pattern: {domain}.{action}.{resource}
const (
	// SubjectFlowsInbound prefixes normalized webhook triggers; the flow
	// context is appended as the last token.
	SubjectFlowsInbound = "flows.inbound"

	// SubjectFlowsInboundAll matches every flow context.
	SubjectFlowsInboundAll = SubjectFlowsInbound + ".>"
)

// Header names carried on flow trigger messages.
const (
	HeaderWorkspaceID = "Flowhook-Workspace-Id"
	HeaderRequestID   = "X-Request-ID"
)

// FlowInboundSubject returns the subject for one flow context.
// Example: flows.inbound.chatwoot
func FlowInboundSubject(flowContext string) string {
	return SubjectFlowsInbound + "." + flowContext
}

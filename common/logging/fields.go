package logging

import "log/slog"

// Field names used across flowhook log lines.
const (
	FieldService     = "service"
	FieldRequestID   = "request_id"
	FieldWorkspaceID = "workspace_id"
	FieldNodeID      = "node_id"
	FieldProvider    = "provider"
	FieldFlowContext = "flow_context"
	FieldSessionKey  = "session_key"
	FieldIP          = "ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatus      = "status"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
)

func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

func WorkspaceID(id string) slog.Attr {
	return slog.String(FieldWorkspaceID, id)
}

func NodeID(id string) slog.Attr {
	return slog.String(FieldNodeID, id)
}

// Provider is the route label the webhook arrived on, not the detected context.
func Provider(name string) slog.Attr {
	return slog.String(FieldProvider, name)
}

func FlowContext(fc string) slog.Attr {
	return slog.String(FieldFlowContext, fc)
}

// SessionKey logs an optional session key; nil is rendered as an empty string.
func SessionKey(key *string) slog.Attr {
	if key == nil {
		return slog.String(FieldSessionKey, "")
	}
	return slog.String(FieldSessionKey, *key)
}

func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

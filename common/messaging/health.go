package messaging

import (
	"fmt"
)

// HealthStatus represents the health state of a messaging connection.
type HealthStatus struct {
	// Connected indicates if the client is connected.
	Connected bool `json:"connected"`

	// LatencyMS is the round-trip time for a health ping.
	LatencyMS int64 `json:"latency_ms"`

	// Error contains any error message if unhealthy.
	Error string `json:"error,omitempty"`
}

// CheckClientHealth reports whether client is connected and how fast the
// broker answers a ping.
func CheckClientHealth(client Client) HealthStatus {
	status := HealthStatus{}

	if client == nil {
		status.Error = "client is nil"
		return status
	}

	status.Connected = client.IsConnected()
	if !status.Connected {
		status.Error = "not connected to message broker"
		return status
	}

	rtt, err := client.RTT()
	if err != nil {
		status.Error = fmt.Sprintf("health check failed: %v", err)
		return status
	}
	status.LatencyMS = rtt.Milliseconds()

	return status
}

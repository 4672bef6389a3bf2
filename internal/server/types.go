// Package server defines the connection lifecycle states and utility helpers
// shared by the client pumps and the channel engine.
package server

import "strings"

// State is the lifecycle state of a client connection.
type State int

// Connection lifecycle: Connecting -> Open -> Registered -> Closed. Open and
// Registered may both move straight to Closed.
const (
	StateConnecting State = iota
	StateOpen
	StateRegistered
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateRegistered:
		return "registered"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ChannelStatus is the per-channel entry of the status summary.
type ChannelStatus struct {
	Name             string `json:"name"`
	NbConnectedUsers int    `json:"nb_connected_users"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}

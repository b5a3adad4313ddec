// Package device controls playback on a Spotify Connect device.
package device

// State represents the device connection state.
type State int

const (
	StateUninitialized State = iota // Connect has not been attempted
	StateInitializing               // Connect is in progress
	StateReady                      // Device accepted a playback transfer
	StateDisconnected               // Device was torn down
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

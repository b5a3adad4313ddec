package device

// EventType represents a device event type.
type EventType int

const (
	EventReady        EventType = iota // Device is ready for playback
	EventNotReady                      // Device became unavailable
	EventError                         // Device reported an error
	EventStateChanged                  // State transition with no more specific event
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventReady:
		return "ready"
	case EventNotReady:
		return "not_ready"
	case EventError:
		return "error"
	case EventStateChanged:
		return "state_changed"
	default:
		return "unknown"
	}
}

// Event represents a device event.
type Event struct {
	Type  EventType
	State State
	Err   error // Set for EventError
}

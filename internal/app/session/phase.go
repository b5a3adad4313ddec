// Package session orchestrates a guessing game round over a playlist.
package session

// Phase represents the session lifecycle phase.
// A current track exists exactly in PhasePlaying and PhaseRevealed.
type Phase int

const (
	PhaseLoading       Phase = iota // Catalog and device are not ready yet
	PhaseAwaitingStart              // Ready, waiting for the first play
	PhasePlaying                    // A hidden track is playing
	PhaseRevealed                   // The current track has been revealed
	PhaseCompleted                  // Session is over
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseAwaitingStart:
		return "awaiting_start"
	case PhasePlaying:
		return "playing"
	case PhaseRevealed:
		return "revealed"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Package playback provides the playback controller: a state machine that
// renders the stem mix, drives the output device and tracks the position.
package playback

// State represents the playback state.
type State int

const (
	StateStopped State = iota // Nothing playing, position held for the next Play
	StatePlaying              // Output is running (or being rebuilt)
	StatePaused               // Output is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

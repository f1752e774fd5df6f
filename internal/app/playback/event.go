package playback

import (
	"time"

	"github.com/osa030/stembox/internal/domain/track"
)

// EventType represents a playback event type.
type EventType int

const (
	EventSessionLoaded EventType = iota // A new source replaced the session
	EventStateChanged                   // Playback state changed
	EventProgress                       // Position update
	EventFinished                       // Playback reached the end of the source
	EventError                          // A background operation failed; state is Stopped
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventSessionLoaded:
		return "session_loaded"
	case EventStateChanged:
		return "state_changed"
	case EventProgress:
		return "progress"
	case EventFinished:
		return "finished"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is an immutable playback notification.
type Event struct {
	Type      EventType
	State     State
	Mode      track.Mode
	Position  time.Duration
	Duration  time.Duration
	SessionID string
	Err       error // EventError only
}

// Publisher receives events from the controller. Publish must not block.
type Publisher interface {
	Publish(Event)
}

type discard struct{}

func (discard) Publish(Event) {}

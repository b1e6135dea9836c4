package app

import (
	"errors"
	"time"

	"github.com/ayushi512rai/Lack-of-Accessibility/internal/detector"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/gesture"
)

// Session errors. They are reported through Update.Error and the stored end
// reason; Start returns ErrCameraUnavailable and ErrAlreadyRunning directly.
var (
	ErrCameraUnavailable   = errors.New("camera unavailable")
	ErrDetectorUnavailable = errors.New("detector unavailable")
	ErrAlreadyRunning      = errors.New("session already running")
)

// State is the lifecycle state of the recognition loop.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Update is what the presentation layer shows: the current labels plus
// whether recognition is running.
type Update struct {
	SessionID string        `json:"sessionId,omitempty"`
	State     State         `json:"state"`
	Running   bool          `json:"running"`
	Letter    gesture.Label `json:"letter"`
	Gesture   gesture.Label `json:"gesture"`
	// Image is the reference picture for Gesture, if there is one.
	Image string `json:"image,omitempty"`
	// Spoken is set on the update that announced Letter.
	Spoken    bool               `json:"spoken,omitempty"`
	Landmarks []detector.Point3D `json:"landmarks,omitempty"`
	Error     string             `json:"error,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Sink receives every published Update. Publish is called from the loop
// goroutine and must not block.
type Sink interface {
	Publish(Update)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Update)

// Publish calls f(u).
func (f SinkFunc) Publish(u Update) { f(u) }

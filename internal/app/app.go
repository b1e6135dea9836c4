// Package app runs the recognition loop: it owns the camera for a session,
// feeds frames to the hand detector, classifies and debounces the results,
// and hands them to speech and the presentation sinks.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayushi512rai/Lack-of-Accessibility/internal/capture"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/detector"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/gesture"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/observe"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/speech"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/store"
)

const (
	// DefaultStallTicks is how many ticks a detection may stay in flight
	// before it is abandoned and the current frame resubmitted.
	DefaultStallTicks = 30
	// MotionHold keeps submitting frames this long after the last motion,
	// so a sign held still is still recognized.
	MotionHold = 2 * time.Second
	// DefaultMotionThreshold is the changed-pixel percentage for the motion gate.
	DefaultMotionThreshold = 1.0
)

// Config holds the collaborators and tuning of an App.
type Config struct {
	Camera  capture.Camera
	Gate    *detector.Gate
	Speaker speech.Speaker
	// Store records sessions and their transcript when set.
	Store   *store.Store
	Metrics *observe.Metrics
	Logger  *slog.Logger

	CameraID        int
	FPS             int
	StallTicks      int
	MotionGate      bool
	MotionThreshold float64
	Dropout         gesture.DropoutPolicy
}

// App is the frame loop controller. At most one session runs at a time.
type App struct {
	config  Config
	log     *slog.Logger
	speaker speech.Speaker
	motion  *capture.MotionDetector
	preview *Preview

	mu      sync.Mutex
	state   State
	session *session
	snap    Update
	sinks   []Sink
}

// New validates config and returns an idle App.
func New(config Config) (*App, error) {
	if config.Camera == nil {
		return nil, errors.New("app: camera is required")
	}
	if config.Gate == nil {
		return nil, errors.New("app: detector gate is required")
	}
	if config.FPS <= 0 {
		config.FPS = capture.DefaultFPS
	}
	if config.StallTicks <= 0 {
		config.StallTicks = DefaultStallTicks
	}
	log := config.Logger
	if log == nil {
		log = slog.Default()
	}
	speaker := config.Speaker
	if speaker == nil {
		speaker = speech.Nop{}
	}

	a := &App{
		config:  config,
		log:     log.With(slog.String("component", "app")),
		speaker: speaker,
		preview: NewPreview(),
		state:   StateIdle,
		snap:    Update{State: StateIdle, Timestamp: time.Now()},
	}
	if config.MotionGate {
		threshold := config.MotionThreshold
		if threshold <= 0 {
			threshold = DefaultMotionThreshold
		}
		a.motion = capture.NewMotionDetector(threshold)
	}
	return a, nil
}

// AddSink registers s for every subsequent Update.
func (a *App) AddSink(s Sink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sinks = append(a.sinks, s)
}

// State returns the current lifecycle state.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Running reports whether a session is delivering frames.
func (a *App) Running() bool {
	return a.State() == StateRunning
}

// Snapshot returns the latest Update.
func (a *App) Snapshot() Update {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}

// Preview returns the live JPEG frame broadcaster.
func (a *App) Preview() *Preview {
	return a.preview
}

// Start acquires the camera and starts a session, returning its ID. The
// session outlives ctx; end it with Stop. If the camera cannot be acquired
// the App stays in StateAcquiring, publishes a not-running Update and
// returns ErrCameraUnavailable. It does not retry.
func (a *App) Start(ctx context.Context) (string, error) {
	a.mu.Lock()
	if a.session != nil {
		a.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := newSession(uuid.NewString(), cancel, a.config.Dropout)
	a.session = s
	a.state = StateAcquiring
	a.snap = Update{SessionID: s.id, State: StateAcquiring, Timestamp: time.Now()}
	u := a.snap
	a.mu.Unlock()

	log := a.log.With(slog.String("session", s.id))
	a.publish(u)
	a.createSession(s)

	if err := a.config.Camera.Open(); err != nil {
		err = fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
		log.Error("acquire camera", slog.String("error", err.Error()))
		a.endSession(s.id, err.Error())
		cancel()

		a.mu.Lock()
		a.session = nil
		a.snap = Update{SessionID: s.id, State: StateAcquiring, Error: err.Error(), Timestamp: time.Now()}
		u = a.snap
		a.mu.Unlock()
		close(s.done)
		a.publish(u)
		return "", err
	}
	if a.motion != nil {
		a.motion.Reset()
	}

	log.Info("session started", slog.Int("fps", a.config.FPS), slog.String("dropout", a.config.Dropout.String()))
	go a.run(sctx, s)
	return s.id, nil
}

// Stop ends the running session and waits until its camera is released.
// No Speak or Publish happens after Stop returns.
func (a *App) Stop() {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()
	if s == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Close stops any session and releases the motion gate.
func (a *App) Close() error {
	a.Stop()
	if a.motion != nil {
		a.motion.Close()
	}
	return nil
}

// Toggle starts a session when none runs and stops it otherwise.
func (a *App) Toggle(ctx context.Context) error {
	a.mu.Lock()
	running := a.session != nil
	a.mu.Unlock()
	if running {
		a.Stop()
		return nil
	}
	_, err := a.Start(ctx)
	return err
}

func (a *App) publish(u Update) {
	a.mu.Lock()
	sinks := append([]Sink(nil), a.sinks...)
	a.mu.Unlock()
	for _, s := range sinks {
		s.Publish(u)
	}
}

func (a *App) createSession(s *session) {
	if a.config.Store == nil {
		return
	}
	err := a.config.Store.Sessions().Create(&store.Session{
		ID:       s.id,
		CameraID: a.config.CameraID,
		Dropout:  a.config.Dropout.String(),
	})
	if err != nil {
		a.log.Warn("record session", slog.String("session", s.id), slog.String("error", err.Error()))
	}
}

func (a *App) endSession(id, reason string) {
	if a.config.Store == nil {
		return
	}
	if err := a.config.Store.Sessions().End(id, reason); err != nil {
		a.log.Warn("end session", slog.String("session", id), slog.String("error", err.Error()))
	}
}

func (a *App) recordLetter(s *session, res gesture.Result) {
	if a.config.Store == nil {
		return
	}
	err := a.config.Store.Transcript().Add(&store.Entry{
		SessionID: s.id,
		Letter:    res.Letter.String(),
		Gesture:   res.Gesture.String(),
	})
	if err != nil {
		a.log.Warn("record letter", slog.String("session", s.id), slog.String("error", err.Error()))
	}
}

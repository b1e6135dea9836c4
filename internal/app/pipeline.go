package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayushi512rai/Lack-of-Accessibility/internal/detector"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/gesture"
)

// resultBuffer bounds detections waiting for the loop. Abandoned requests
// may still report, so it is larger than one.
const resultBuffer = 4

// session is the state of one camera acquisition. Everything except done
// and cancel is owned by the loop goroutine.
type session struct {
	id      string
	cancel  context.CancelFunc
	done    chan struct{}
	release sync.Once

	debouncer  *gesture.Debouncer
	results    chan detection
	seq        uint64
	pending    *pending
	running    bool
	lastMotion time.Time
	err        error
}

// pending is the detection currently in flight.
type pending struct {
	seq    uint64
	cancel context.CancelFunc
	ticks  int
}

type detection struct {
	seq   uint64
	hands []detector.HandLandmarks
	err   error
	took  time.Duration
}

func newSession(id string, cancel context.CancelFunc, policy gesture.DropoutPolicy) *session {
	return &session{
		id:         id,
		cancel:     cancel,
		done:       make(chan struct{}),
		debouncer:  gesture.NewDebouncer(policy),
		results:    make(chan detection, resultBuffer),
		lastMotion: time.Now(),
	}
}

// run waits for the detector and drives the loop until the session is
// stopped or fails.
func (a *App) run(ctx context.Context, s *session) {
	defer close(s.done)
	defer a.finish(s)

	det, err := a.config.Gate.WhenReady(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.err = fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
		}
		return
	}
	s.err = a.loop(ctx, s, det)
}

func (a *App) loop(ctx context.Context, s *session, det detector.Detector) error {
	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				return nil
			}
			a.tick(ctx, s, det)
		case r := <-s.results:
			if ctx.Err() != nil {
				return nil
			}
			if err := a.deliver(ctx, s, r); err != nil {
				return err
			}
		}
	}
}

// tick reads one frame, submits it when the detector is free and publishes
// the current state.
func (a *App) tick(ctx context.Context, s *session, det detector.Detector) {
	frame, err := a.config.Camera.ReadFrame()
	if err != nil {
		a.config.Metrics.RecordFrame(ctx, "error")
		a.log.Warn("read frame", slog.String("session", s.id), slog.String("error", err.Error()))
		return
	}
	a.config.Metrics.RecordFrame(ctx, "ok")

	if !s.running {
		s.running = true
		a.config.Metrics.SessionStarted(ctx)
		a.mu.Lock()
		a.state = StateRunning
		a.snap.State = StateRunning
		a.snap.Running = true
		a.mu.Unlock()
		a.log.Info("session running", slog.String("session", s.id))
	}

	a.preview.offer(frame)

	if a.shouldSubmit(ctx, s, frame) {
		a.submit(ctx, s, det, frame)
	} else {
		frame.Close()
	}

	a.mu.Lock()
	a.snap.Timestamp = time.Now()
	u := a.snap
	a.mu.Unlock()
	a.publish(u)
}

func (a *App) shouldSubmit(ctx context.Context, s *session, frame *gocv.Mat) bool {
	// The stall clock runs whether or not the scene moves.
	if p := s.pending; p != nil {
		p.ticks++
		if p.ticks >= a.config.StallTicks {
			p.cancel()
			s.pending = nil
			a.config.Metrics.RecordStall(ctx)
			a.log.Warn("detection stalled, resubmitting",
				slog.String("session", s.id),
				slog.Uint64("seq", p.seq),
				slog.Int("ticks", p.ticks),
			)
		}
	}

	if a.motion != nil {
		now := time.Now()
		if a.motion.Detect(frame).Moved {
			s.lastMotion = now
		}
		if now.Sub(s.lastMotion) > MotionHold {
			a.config.Metrics.RecordSkip(ctx, "still")
			return false
		}
	}

	if s.pending != nil {
		a.config.Metrics.RecordSkip(ctx, "busy")
		return false
	}
	return true
}

// submit hands frame to the detector on its own goroutine, which closes it.
func (a *App) submit(ctx context.Context, s *session, det detector.Detector, frame *gocv.Mat) {
	s.seq++
	seq := s.seq
	dctx, cancel := context.WithCancel(ctx)
	s.pending = &pending{seq: seq, cancel: cancel}

	go func() {
		defer frame.Close()
		defer cancel()

		start := time.Now()
		hands, err := det.Detect(dctx, frame)
		r := detection{seq: seq, hands: hands, err: err, took: time.Since(start)}

		select {
		case s.results <- r:
		case <-ctx.Done():
		}
	}()
}

// deliver applies a detector result. Results of abandoned requests are
// dropped; a detector error ends the session.
func (a *App) deliver(ctx context.Context, s *session, r detection) error {
	if s.pending == nil || r.seq != s.pending.seq {
		a.config.Metrics.RecordDetection(ctx, "stale", r.took.Seconds())
		return nil
	}
	s.pending.cancel()
	s.pending = nil

	if r.err != nil {
		a.config.Metrics.RecordDetection(ctx, "error", r.took.Seconds())
		return fmt.Errorf("detect: %w", r.err)
	}
	a.config.Metrics.RecordDetection(ctx, "ok", r.took.Seconds())

	var hand *detector.HandLandmarks
	if len(r.hands) > 0 {
		hand = &r.hands[0]
	}
	res := gesture.Classify(hand)

	spoken := s.debouncer.Emit(res.Letter)
	if spoken {
		a.speaker.Speak(res.Letter.String())
		a.config.Metrics.RecordLabel(ctx, res.Letter.String())
		a.recordLetter(s, res)
		a.log.Info("letter", slog.String("session", s.id), slog.String("letter", res.Letter.String()), slog.String("gesture", res.Gesture.String()))
	}

	image, _ := gesture.ImageFor(res.Gesture)
	var points []detector.Point3D
	if hand.Valid() {
		points = append([]detector.Point3D(nil), hand.Points...)
	}

	a.mu.Lock()
	a.snap.Letter = res.Letter
	a.snap.Gesture = res.Gesture
	a.snap.Image = image
	a.snap.Landmarks = points
	a.snap.Timestamp = time.Now()
	u := a.snap
	a.mu.Unlock()

	u.Spoken = spoken
	a.publish(u)
	return nil
}

// finish releases the session's resources and publishes the final state.
func (a *App) finish(s *session) {
	s.cancel()
	if s.pending != nil {
		s.pending.cancel()
		s.pending = nil
	}
	a.releaseCamera(s)

	reason := "stopped"
	var errText string
	if s.err != nil {
		errText = s.err.Error()
		reason = errText
		a.log.Error("session failed", slog.String("session", s.id), slog.String("error", errText))
	} else {
		a.log.Info("session stopped", slog.String("session", s.id))
	}
	a.endSession(s.id, reason)
	if s.running {
		a.config.Metrics.SessionEnded(context.Background())
	}

	a.mu.Lock()
	if a.session == s {
		a.session = nil
	}
	a.state = StateStopped
	a.snap = Update{SessionID: s.id, State: StateStopped, Error: errText, Timestamp: time.Now()}
	u := a.snap
	a.mu.Unlock()
	a.publish(u)
}

func (a *App) releaseCamera(s *session) {
	s.release.Do(func() {
		if err := a.config.Camera.Close(); err != nil {
			a.log.Warn("release camera", slog.String("session", s.id), slog.String("error", err.Error()))
		}
	})
}

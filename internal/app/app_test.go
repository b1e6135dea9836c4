package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayushi512rai/Lack-of-Accessibility/internal/capture"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/detector"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/gesture"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/speech"
	"github.com/ayushi512rai/Lack-of-Accessibility/internal/store"
)

const (
	waitFor = 3 * time.Second
	pollMs  = 5 * time.Millisecond
)

type updateRecorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *updateRecorder) Publish(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *updateRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func (r *updateRecorder) Last() Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return Update{}
	}
	return r.updates[len(r.updates)-1]
}

type harness struct {
	app     *App
	camera  *capture.MockCamera
	det     *detector.MockDetector
	speaker *speech.Recorder
	sink    *updateRecorder
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		camera:  capture.NewMockCamera(nil, true),
		det:     detector.NewMockDetector(),
		speaker: &speech.Recorder{},
		sink:    &updateRecorder{},
	}
	cfg := Config{
		Camera:     h.camera,
		Gate:       detector.Ready(h.det),
		Speaker:    h.speaker,
		FPS:        100,
		StallTicks: DefaultStallTicks,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	a, err := New(cfg)
	require.NoError(t, err)
	a.AddSink(h.sink)
	h.app = a
	t.Cleanup(func() { a.Close() })
	return h
}

func hands(h detector.HandLandmarks) []detector.HandLandmarks {
	return []detector.HandLandmarks{h}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{Gate: detector.Ready(detector.NewMockDetector())})
	assert.Error(t, err)

	_, err = New(Config{Camera: capture.NewMockCamera(nil, true)})
	assert.Error(t, err)

	a, err := New(Config{Camera: capture.NewMockCamera(nil, true), Gate: detector.Ready(detector.NewMockDetector())})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, a.State())
	assert.Equal(t, capture.DefaultFPS, a.config.FPS)
	assert.Equal(t, DefaultStallTicks, a.config.StallTicks)
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateAcquiring, "acquiring"},
		{StateRunning, "running"},
		{StateStopped, "stopped"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
			text, err := tt.state.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(text))
		})
	}
}

func TestApp_SpeaksOnlyOnLetterChange(t *testing.T) {
	h := newHarness(t, nil)
	// A thumbs-up raises one tip above the wrist. The numeric rule is checked
	// before "Thumbs Up", so the gesture is "1" and the letter B.
	h.det.SetHands(hands(detector.ThumbsUpLandmarks()))

	id, err := h.app.Start(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Eventually(t, func() bool { return h.speaker.Len() == 1 }, waitFor, pollMs)
	require.Eventually(t, func() bool { return h.det.Calls() >= 5 }, waitFor, pollMs)
	assert.Equal(t, []string{"B"}, h.speaker.Texts(), "a held letter is announced once")

	snap := h.app.Snapshot()
	assert.Equal(t, StateRunning, snap.State)
	assert.True(t, snap.Running)
	assert.Equal(t, gesture.LetterB, snap.Letter)
	assert.Equal(t, gesture.Label("1"), snap.Gesture)
	assert.Equal(t, "/asl_numbers/1.png", snap.Image)
	assert.Len(t, snap.Landmarks, detector.NumLandmarks)

	h.det.SetHands(hands(detector.OpenPalmLandmarks()))
	require.Eventually(t, func() bool { return h.speaker.Len() == 2 }, waitFor, pollMs)
	assert.Equal(t, []string{"B", "Open hand"}, h.speaker.Texts())

	h.app.Stop()
	assert.Equal(t, StateStopped, h.app.State())
	assert.False(t, h.app.Snapshot().Running)

	opens, closes := h.camera.Acquisitions()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
}

func TestApp_NoHandClearsLabels(t *testing.T) {
	h := newHarness(t, nil)
	h.det.SetHands(hands(detector.FistLandmarks()))

	_, err := h.app.Start(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.speaker.Len() == 1 }, waitFor, pollMs)
	assert.Equal(t, gesture.Label("Yes"), h.app.Snapshot().Gesture)

	h.det.SetHands(nil)
	require.Eventually(t, func() bool {
		s := h.app.Snapshot()
		return s.Letter.Empty() && s.Gesture.Empty()
	}, waitFor, pollMs)
	assert.True(t, h.app.Snapshot().Running)
	assert.Empty(t, h.app.Snapshot().Image)
}

// speakAcrossGap shows letter A, loses the hand for a few detections, shows A
// again and returns what was spoken.
func speakAcrossGap(t *testing.T, h *harness) []string {
	t.Helper()
	h.det.SetHands(hands(detector.FistLandmarks()))

	_, err := h.app.Start(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.speaker.Len() == 1 }, waitFor, pollMs)

	calls := h.det.Calls()
	h.det.SetHands(nil)
	require.Eventually(t, func() bool { return h.det.Calls() >= calls+3 }, waitFor, pollMs)
	require.Eventually(t, func() bool { return h.app.Snapshot().Letter.Empty() }, waitFor, pollMs)

	calls = h.det.Calls()
	h.det.SetHands(hands(detector.FistLandmarks()))
	require.Eventually(t, func() bool { return h.det.Calls() >= calls+3 }, waitFor, pollMs)
	require.Eventually(t, func() bool { return h.app.Snapshot().Letter == gesture.LetterA }, waitFor, pollMs)

	h.app.Stop()
	return h.speaker.Texts()
}

func TestApp_DropoutPolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy gesture.DropoutPolicy
		want   []string
	}{
		{"forget re-announces after a gap", gesture.DropoutForget, []string{"A", "A"}},
		{"hold keeps the last letter", gesture.DropoutHold, []string{"A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(c *Config) { c.Dropout = tt.policy })
			assert.Equal(t, tt.want, speakAcrossGap(t, h))
		})
	}
}

func TestApp_DefaultDropoutIgnoresFlicker(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, []string{"A"}, speakAcrossGap(t, h), "losing the hand briefly must not repeat the letter")
}

func TestApp_NothingAfterStop(t *testing.T) {
	h := newHarness(t, nil)
	h.det.Block()

	_, err := h.app.Start(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.det.Calls() >= 1 }, waitFor, pollMs)

	h.app.Stop()
	published := h.sink.Len()
	assert.Equal(t, StateStopped, h.sink.Last().State)

	// The in-flight detection resolves after teardown.
	h.det.SetHands(hands(detector.ThumbsUpLandmarks()))
	h.det.Unblock()
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, published, h.sink.Len(), "no publish after Stop")
	assert.Zero(t, h.speaker.Len(), "no speech after Stop")

	opens, closes := h.camera.Acquisitions()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
}

func TestApp_CameraUnavailable(t *testing.T) {
	h := newHarness(t, nil)
	h.camera.SetOpenError(errors.New("permission denied"))

	_, err := h.app.Start(context.Background())
	require.ErrorIs(t, err, ErrCameraUnavailable)

	assert.Equal(t, StateAcquiring, h.app.State())
	last := h.sink.Last()
	assert.False(t, last.Running)
	assert.Equal(t, StateAcquiring, last.State)
	assert.Contains(t, last.Error, "permission denied")

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, h.det.Calls(), "no frames are submitted without a camera")
	opens, closes := h.camera.Acquisitions()
	assert.Zero(t, opens)
	assert.Zero(t, closes)

	// No automatic retry, but a new Start may succeed.
	h.camera.SetOpenError(nil)
	_, err = h.app.Start(context.Background())
	require.NoError(t, err)
	require.Eventually(t, h.app.Running, waitFor, pollMs)
}

func TestApp_DetectorUnavailable(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Gate = detector.NewGate(func(context.Context) (detector.Detector, error) {
			return nil, errors.New("mediapipe not installed")
		})
	})

	_, err := h.app.Start(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.app.State() == StateStopped }, waitFor, pollMs)
	snap := h.app.Snapshot()
	assert.False(t, snap.Running)
	assert.Contains(t, snap.Error, ErrDetectorUnavailable.Error())

	opens, closes := h.camera.Acquisitions()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes, "camera released on the error path")
}

func TestApp_DetectorErrorIsTerminal(t *testing.T) {
	h := newHarness(t, nil)
	h.det.SetError(errors.New("helper crashed"))

	_, err := h.app.Start(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.app.State() == StateStopped }, waitFor, pollMs)
	calls := h.det.Calls()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, calls, h.det.Calls(), "no retry after a detector error")
	assert.Contains(t, h.app.Snapshot().Error, "helper crashed")
	assert.Zero(t, h.speaker.Len())
	_, closes := h.camera.Acquisitions()
	assert.Equal(t, 1, closes)
}

func TestApp_StalledDetectionIsResubmitted(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.StallTicks = 2 })
	h.det.Block()

	_, err := h.app.Start(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.det.Calls() >= 3 }, waitFor, pollMs)
	assert.Equal(t, StateRunning, h.app.State(), "a stall is not an error")

	h.det.SetHands(hands(detector.FistLandmarks()))
	h.det.Unblock()
	require.Eventually(t, func() bool { return h.speaker.Len() == 1 }, waitFor, pollMs)
	assert.Equal(t, []string{"A"}, h.speaker.Texts())
}

func TestApp_FreshDebouncerPerSession(t *testing.T) {
	h := newHarness(t, nil)
	h.det.SetHands(hands(detector.ThumbsUpLandmarks()))

	for i := 1; i <= 2; i++ {
		_, err := h.app.Start(context.Background())
		require.NoError(t, err)
		require.Eventually(t, func() bool { return h.speaker.Len() == i }, waitFor, pollMs)
		h.app.Stop()
	}

	assert.Equal(t, []string{"B", "B"}, h.speaker.Texts())
	opens, closes := h.camera.Acquisitions()
	assert.Equal(t, 2, opens)
	assert.Equal(t, 2, closes)
}

func TestApp_AlreadyRunning(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.app.Start(context.Background())
	require.NoError(t, err)

	_, err = h.app.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestApp_StopWhenIdle(t *testing.T) {
	h := newHarness(t, nil)
	h.app.Stop()
	assert.Equal(t, StateIdle, h.app.State())
	assert.Zero(t, h.sink.Len())
}

func TestApp_Toggle(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.app.Toggle(context.Background()))
	require.Eventually(t, h.app.Running, waitFor, pollMs)

	require.NoError(t, h.app.Toggle(context.Background()))
	assert.Equal(t, StateStopped, h.app.State())
}

func TestApp_SessionOutlivesStartContext(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := h.app.Start(ctx)
	require.NoError(t, err)
	cancel()

	require.Eventually(t, h.app.Running, waitFor, pollMs)
	time.Sleep(30 * time.Millisecond)
	assert.True(t, h.app.Running())
}

func TestApp_RecordsTranscript(t *testing.T) {
	st, err := store.New(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := newHarness(t, func(c *Config) {
		c.Store = st
		c.CameraID = 3
	})
	h.det.SetHands(hands(detector.ThumbsUpLandmarks()))

	id, err := h.app.Start(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.speaker.Len() == 1 }, waitFor, pollMs)
	h.app.Stop()

	sess, err := st.Sessions().GetByID(id)
	require.NoError(t, err)
	assert.Equal(t, 3, sess.CameraID)
	assert.Equal(t, "stopped", sess.EndReason)
	assert.False(t, sess.Running())

	entries, err := st.Transcript().ListBySession(id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "B", entries[0].Letter)
	assert.Equal(t, "1", entries[0].Gesture)
}

func TestApp_MotionGateSubmitsWithinHold(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MotionGate = true })
	h.det.SetHands(hands(detector.OpenPalmLandmarks()))

	_, err := h.app.Start(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.speaker.Len() == 1 }, waitFor, pollMs)
	assert.Equal(t, []string{"Open hand"}, h.speaker.Texts())
}

func TestSinkFunc(t *testing.T) {
	var got Update
	SinkFunc(func(u Update) { got = u }).Publish(Update{Letter: gesture.LetterC})
	assert.Equal(t, gesture.LetterC, got.Letter)
}

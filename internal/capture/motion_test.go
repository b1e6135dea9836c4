package capture

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// scene returns a black 640x480 frame with a white box standing in for a
// raised hand. An empty rect gives an empty scene.
func scene(t *testing.T, hand image.Rectangle) *gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
	if !hand.Empty() {
		gocv.Rectangle(&m, hand, color.RGBA{255, 255, 255, 0}, -1)
	}
	t.Cleanup(func() { m.Close() })
	return &m
}

func TestMotionDetector_FirstFrameIsBaseline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}
	md := NewMotionDetector(1.0)
	defer md.Close()

	assert.Equal(t, Motion{}, md.Detect(scene(t, image.Rect(0, 0, 320, 240))))
}

func TestMotionDetector_StillSigner(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}
	md := NewMotionDetector(1.0)
	defer md.Close()

	hand := image.Rect(200, 100, 400, 300)
	md.Detect(scene(t, hand))
	got := md.Detect(scene(t, hand))

	assert.False(t, got.Moved)
	assert.InDelta(t, 0, got.Changed, 0.01)
}

func TestMotionDetector_HandRaised(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}
	md := NewMotionDetector(1.0)
	defer md.Close()

	md.Detect(scene(t, image.Rectangle{}))
	got := md.Detect(scene(t, image.Rect(0, 0, 320, 240)))

	require.True(t, got.Moved, "changed = %f", got.Changed)
	// A quarter of the frame changed; the blur softens the box edges.
	assert.InDelta(t, 25, got.Changed, 3)
}

func TestMotionDetector_SmallChangeBelowThreshold(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}
	md := NewMotionDetector(1.0)
	defer md.Close()

	md.Detect(scene(t, image.Rectangle{}))
	got := md.Detect(scene(t, image.Rect(10, 10, 14, 14)))

	assert.False(t, got.Moved, "changed = %f", got.Changed)
}

func TestMotionDetector_ResolutionChangeResetsBaseline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}
	md := NewMotionDetector(1.0)
	defer md.Close()

	md.Detect(scene(t, image.Rectangle{}))

	small := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer small.Close()
	small.SetTo(gocv.NewScalar(255, 255, 255, 0))

	assert.Equal(t, Motion{}, md.Detect(&small))
}

func TestMotionDetector_Reset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}
	md := NewMotionDetector(1.0)
	defer md.Close()

	md.Detect(scene(t, image.Rectangle{}))
	md.Reset()

	assert.False(t, md.hasPrev)
	assert.Equal(t, Motion{}, md.Detect(scene(t, image.Rect(0, 0, 640, 480))))
}

func TestMotionDetector_EmptyFrame(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	assert.Equal(t, Motion{}, md.Detect(nil))

	empty := gocv.NewMat()
	defer empty.Close()
	assert.Equal(t, Motion{}, md.Detect(&empty))
	assert.False(t, md.hasPrev)
}

func TestMotionDetector_Threshold(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	md.SetThreshold(5.0)
	assert.Equal(t, 5.0, md.Threshold())

	md.SetThreshold(0)
	md.SetThreshold(-1)
	assert.Equal(t, 5.0, md.Threshold(), "non-positive thresholds are ignored")
}

func TestMotionDetector_UsableAfterClose(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}
	md := NewMotionDetector(1.0)
	md.Close()
	md.Close()

	md.Detect(scene(t, image.Rectangle{}))
	got := md.Detect(scene(t, image.Rect(0, 0, 320, 240)))
	assert.True(t, got.Moved)
	md.Close()
}

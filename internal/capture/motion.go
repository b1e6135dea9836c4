package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	// AnalysisWidth is the width frames are scaled to before differencing.
	AnalysisWidth = 160
	blurKernel    = 5
	// pixelDelta is the grey-level change that counts a pixel as changed.
	pixelDelta = 25
)

// Motion is the outcome of comparing a frame with its predecessor.
type Motion struct {
	// Moved is true when Changed exceeds the detector's threshold.
	Moved bool
	// Changed is the percentage of pixels that changed.
	Changed float64
}

// MotionDetector compares each frame to the previous one on a downscaled
// greyscale copy. The recognition loop uses it to skip landmark detection
// while the signer is still.
type MotionDetector struct {
	mu        sync.Mutex
	threshold float64
	prev      gocv.Mat
	hasPrev   bool
}

// NewMotionDetector creates a MotionDetector. threshold is the percentage of
// pixels that must change, e.g. 1.0 for 1%.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prev:      gocv.NewMat(),
	}
}

// Detect compares frame with the previous frame. The first frame after
// construction or Reset only establishes the baseline and reports no motion.
func (m *MotionDetector) Detect(frame *gocv.Mat) Motion {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return Motion{}
	}

	cur := gocv.NewMat()
	prepare(frame, &cur)

	if !m.hasPrev || cur.Rows() != m.prev.Rows() || cur.Cols() != m.prev.Cols() {
		m.keep(cur)
		return Motion{}
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(cur, m.prev, &diff)
	gocv.Threshold(diff, &diff, pixelDelta, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100
	m.keep(cur)

	return Motion{Moved: changed > m.threshold, Changed: changed}
}

// prepare writes a blurred greyscale copy of frame, at most AnalysisWidth
// wide, into dst.
func prepare(frame *gocv.Mat, dst *gocv.Mat) {
	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	small := gocv.NewMat()
	defer small.Close()
	if gray.Cols() > AnalysisWidth {
		h := max(gray.Rows()*AnalysisWidth/gray.Cols(), 1)
		gocv.Resize(gray, &small, image.Pt(AnalysisWidth, h), 0, 0, gocv.InterpolationArea)
	} else {
		gray.CopyTo(&small)
	}

	gocv.GaussianBlur(small, dst, image.Pt(blurKernel, blurKernel), 0, 0, gocv.BorderDefault)
}

// keep replaces the baseline with cur, taking ownership of it.
func (m *MotionDetector) keep(cur gocv.Mat) {
	m.prev.Close()
	m.prev = cur
	m.hasPrev = true
}

// Threshold returns the changed-pixel percentage above which Detect reports
// motion.
func (m *MotionDetector) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// SetThreshold sets the changed-pixel percentage. Values <= 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}

// Reset drops the baseline so the next frame starts a new comparison.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keep(gocv.NewMat())
	m.hasPrev = false
}

// Close releases the baseline. The detector stays usable and behaves as
// after Reset.
func (m *MotionDetector) Close() {
	m.Reset()
}

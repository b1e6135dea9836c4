package gesture

import (
	"math"
	"strconv"

	"github.com/ayushi512rai/Lack-of-Accessibility/internal/detector"
)

// Geometry thresholds in normalized image units.
const (
	// ExtendedMargin is how far above the wrist a tip must be to count as extended.
	ExtendedMargin = 0.1
	// PinchDistance is the maximum thumb-to-index tip distance for OK.
	PinchDistance = 0.07
	// FistTolerance is the maximum |tip.y - wrist.y| for every tip in Yes.
	FistTolerance = 0.05
	// TogetherDistance is the maximum horizontal index-to-middle gap for No.
	TogetherDistance = 0.04
)

// Result is the classification of a single observation.
type Result struct {
	Letter  Label `json:"letter"`
	Gesture Label `json:"gesture"`
}

// Empty reports whether neither a letter nor a gesture was recognized.
func (r Result) Empty() bool {
	return r.Letter.Empty() && r.Gesture.Empty()
}

// Classify returns the letter and gesture for hand. Absent or malformed
// observations yield an empty Result.
func Classify(hand *detector.HandLandmarks) Result {
	if !hand.Valid() {
		return Result{}
	}
	h := pose(hand.Points)
	count := h.extendedCount()
	return Result{
		Letter:  LetterFor(count),
		Gesture: h.gesture(count),
	}
}

// CountExtended returns the number of fingertips above the wrist by more than
// ExtendedMargin. Malformed point sets count as zero.
func CountExtended(points []detector.Point3D) int {
	if len(points) != detector.NumLandmarks {
		return 0
	}
	return pose(points).extendedCount()
}

// pose wraps a validated 21-point slice.
type pose []detector.Point3D

func (p pose) wristY() float64 { return p[detector.Wrist].Y }

func (p pose) extended(tip int) bool {
	return p[tip].Y < p.wristY()-ExtendedMargin
}

// below reports whether tip is strictly lower in the image than the wrist.
func (p pose) below(tip int) bool {
	return p[tip].Y > p.wristY()
}

func (p pose) extendedCount() int {
	n := 0
	for _, tip := range detector.Fingertips {
		if p.extended(tip) {
			n++
		}
	}
	return n
}

// rule is one named gesture predicate.
type rule struct {
	label Label
	match func(p pose) bool
}

// rules are evaluated in order after the numeric rule; the first match wins.
var rules = []rule{
	{OK, isOK},
	{Peace, isPeace},
	{ThumbsUp, isThumbsUp},
	{Stop, isStop},
	{Yes, isYes},
	{No, isNo},
}

// gesture applies the numeric rule first, then the named rules.
// Any count in 1..5 shadows every named rule.
func (p pose) gesture(count int) Label {
	if count >= 1 && count <= 5 {
		return Label(strconv.Itoa(count))
	}
	for _, r := range rules {
		if r.match(p) {
			return r.label
		}
	}
	return None
}

func isOK(p pose) bool {
	thumb, index := p[detector.ThumbTip], p[detector.IndexTip]
	dist := math.Hypot(thumb.X-index.X, thumb.Y-index.Y)
	return dist < PinchDistance &&
		p.extended(detector.MiddleTip) &&
		p.extended(detector.RingTip) &&
		p.extended(detector.PinkyTip)
}

func isPeace(p pose) bool {
	return p.extended(detector.IndexTip) &&
		p.extended(detector.MiddleTip) &&
		p.below(detector.RingTip) &&
		p.below(detector.PinkyTip) &&
		p.below(detector.ThumbTip)
}

func isThumbsUp(p pose) bool {
	return p.extended(detector.ThumbTip) &&
		p.below(detector.IndexTip) &&
		p.below(detector.MiddleTip) &&
		p.below(detector.RingTip) &&
		p.below(detector.PinkyTip)
}

func isStop(p pose) bool {
	for _, tip := range detector.Fingertips {
		if !p.extended(tip) {
			return false
		}
	}
	return true
}

func isYes(p pose) bool {
	for _, tip := range detector.Fingertips {
		if math.Abs(p[tip].Y-p.wristY()) >= FistTolerance {
			return false
		}
	}
	return true
}

func isNo(p pose) bool {
	index, middle := p[detector.IndexTip], p[detector.MiddleTip]
	return math.Abs(index.X-middle.X) < TogetherDistance &&
		p.extended(detector.IndexTip) &&
		p.extended(detector.MiddleTip) &&
		p.below(detector.RingTip) &&
		p.below(detector.PinkyTip) &&
		p.below(detector.ThumbTip)
}

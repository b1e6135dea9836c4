package gesture

import "fmt"

// DropoutPolicy decides what an empty label does to the debouncer.
type DropoutPolicy int

const (
	// DropoutHold leaves the last label in place, so hand flicker never
	// re-emits the same label. It is the zero value.
	DropoutHold DropoutPolicy = iota
	// DropoutForget clears the last label, so a label seen again after a
	// gap is emitted again.
	DropoutForget
)

// String returns the config spelling of the policy.
func (p DropoutPolicy) String() string {
	switch p {
	case DropoutHold:
		return "hold"
	case DropoutForget:
		return "forget"
	default:
		return "unknown"
	}
}

// ParseDropoutPolicy parses "hold" or "forget". The empty string is hold.
func ParseDropoutPolicy(s string) (DropoutPolicy, error) {
	switch s {
	case "", "hold":
		return DropoutHold, nil
	case "forget":
		return DropoutForget, nil
	default:
		return 0, fmt.Errorf("unknown dropout policy %q", s)
	}
}

// Debouncer reports label transitions. It is owned by a single goroutine.
type Debouncer struct {
	policy DropoutPolicy
	last   Label
}

// NewDebouncer returns an empty Debouncer using policy for empty labels.
func NewDebouncer(policy DropoutPolicy) *Debouncer {
	return &Debouncer{policy: policy}
}

// Emit records label and reports whether it differs from the last emitted
// non-empty label. Empty labels never report true.
func (d *Debouncer) Emit(label Label) bool {
	if label.Empty() {
		if d.policy == DropoutForget {
			d.last = None
		}
		return false
	}
	if label == d.last {
		return false
	}
	d.last = label
	return true
}

// Last returns the most recently emitted label.
func (d *Debouncer) Last() Label {
	return d.last
}

// Reset forgets the last label.
func (d *Debouncer) Reset() {
	d.last = None
}

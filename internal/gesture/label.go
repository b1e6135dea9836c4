// Package gesture turns hand landmark observations into letter and gesture
// labels and filters repeated labels before they are narrated.
package gesture

// Label is a recognized letter or gesture tag. The empty label means no match.
type Label string

// Named gesture labels.
const (
	None     Label = ""
	OK       Label = "OK"
	Peace    Label = "Peace"
	ThumbsUp Label = "Thumbs Up"
	Stop     Label = "Stop"
	Yes      Label = "Yes"
	No       Label = "No"
)

// Letter labels keyed by extended finger count.
const (
	LetterA  Label = "A"
	LetterB  Label = "B"
	LetterC  Label = "C"
	LetterD  Label = "D"
	LetterE  Label = "E"
	OpenHand Label = "Open hand"
)

var letters = [...]Label{LetterA, LetterB, LetterC, LetterD, LetterE, OpenHand}

// String returns the label text.
func (l Label) String() string {
	return string(l)
}

// Empty reports whether l is the no-match label.
func (l Label) Empty() bool {
	return l == None
}

// LetterFor maps an extended finger count to its letter.
// Counts outside 0..5 have no letter.
func LetterFor(count int) Label {
	if count < 0 || count >= len(letters) {
		return None
	}
	return letters[count]
}

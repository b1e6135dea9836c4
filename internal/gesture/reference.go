package gesture

// Reference pairs a gesture label with its illustration for display.
type Reference struct {
	Label Label  `json:"label"`
	Image string `json:"image"`
}

// references is ordered the way the reference sheet is shown.
var references = []Reference{
	{"1", "/asl_numbers/1.png"},
	{"2", "/asl_numbers/2.png"},
	{"3", "/asl_numbers/3.png"},
	{"4", "/asl_numbers/4.png"},
	{"5", "/asl_numbers/5.png"},
	{OK, "/asl_gestures/ok.png"},
	{Peace, "/asl_gestures/peace.png"},
	{ThumbsUp, "/asl_gestures/thumbsup.png"},
	{Stop, "/asl_gestures/stop.png"},
	{Yes, "/asl_gestures/yes.png"},
	{No, "/asl_gestures/no.png"},
}

// References returns a copy of the reference sheet.
func References() []Reference {
	out := make([]Reference, len(references))
	copy(out, references)
	return out
}

// ImageFor returns the illustration for label.
func ImageFor(label Label) (string, bool) {
	for _, r := range references {
		if r.Label == label {
			return r.Image, true
		}
	}
	return "", false
}

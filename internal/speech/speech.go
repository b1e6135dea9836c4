// Package speech narrates recognized labels through a local text-to-speech
// command.
package speech

import (
	"runtime"
	"sync"
)

// Speaker converts text to audible speech. Speak must not block the caller.
type Speaker interface {
	Speak(text string)
}

// SpeakerFunc adapts a function to Speaker.
type SpeakerFunc func(text string)

// Speak calls f(text).
func (f SpeakerFunc) Speak(text string) { f(text) }

// Nop discards everything.
type Nop struct{}

// Speak does nothing.
func (Nop) Speak(string) {}

// Recorder keeps every utterance in memory. Used by tests and the dry-run mode.
type Recorder struct {
	mu    sync.Mutex
	texts []string
}

// Speak records text.
func (r *Recorder) Speak(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
}

// Texts returns a copy of everything spoken so far.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

// Len returns the number of utterances recorded.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.texts)
}

// DefaultCommand returns the platform speech command.
func DefaultCommand() string {
	switch runtime.GOOS {
	case "darwin":
		return "say"
	case "windows":
		return `powershell -NoProfile -Command "Add-Type -AssemblyName System.Speech; (New-Object System.Speech.Synthesis.SpeechSynthesizer).Speak('{text}')"`
	default:
		return "espeak-ng"
	}
}

// Package tray shows the recognized letter in the system tray and lets the
// user start and stop recognition.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayushi512rai/Lack-of-Accessibility/internal/app"
)

// Tray represents the system tray application. It implements app.Sink.
type Tray struct {
	onToggle func()
	onOpen   func()
	onQuit   func()
	mu       sync.RWMutex

	running bool
	letter  string

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuLetter *systray.MenuItem
}

// New creates a new Tray instance.
func New() *Tray {
	return &Tray{}
}

// OnToggle sets the callback for the start/stop menu item.
func (t *Tray) OnToggle(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback for the open-in-browser menu item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("signspeak")
	systray.SetTooltip("signspeak sign recognition")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.running), "Start or stop recognition")
	systray.AddSeparator()
	t.menuLetter = systray.AddMenuItem(letterTitle(t.letter), "Last recognized letter")
	t.menuLetter.Disable()
	toggle := t.menuToggle
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open signspeak...", "Open the live view in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit signspeak")

	go func() {
		for {
			select {
			case <-toggle.ClickedCh:
				t.call(func() func() { return t.onToggle })
			case <-menuOpen.ClickedCh:
				t.call(func() func() { return t.onOpen })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// call runs the selected callback outside the lock.
func (t *Tray) call(pick func() func()) {
	t.mu.RLock()
	callback := pick()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// Publish reflects u in the menu. Only changes touch the tray.
func (t *Tray) Publish(u app.Update) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if u.Running != t.running {
		t.running = u.Running
		if t.menuToggle != nil {
			t.menuToggle.SetTitle(toggleTitle(t.running))
		}
	}
	if !u.Letter.Empty() && u.Letter.String() != t.letter {
		t.letter = u.Letter.String()
		if t.menuLetter != nil {
			t.menuLetter.SetTitle(letterTitle(t.letter))
		}
	}
}

// Running returns whether the last update reported a running session.
func (t *Tray) Running() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// Letter returns the last recognized letter shown in the menu.
func (t *Tray) Letter() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.letter
}

func toggleTitle(running bool) string {
	if running {
		return "■ Stop recognition"
	}
	return "▶ Start recognition"
}

func letterTitle(letter string) string {
	if letter == "" {
		return "Letter: none"
	}
	return "Letter: " + letter
}

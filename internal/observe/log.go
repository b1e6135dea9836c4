package observe

import (
	"io"
	"log/slog"
)

// NewLogger returns a text logger at level and installs it as the slog
// default.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	log := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	return log
}

// Package logging builds the command-line logger.
package logging

import (
	"io"
	"log/slog"
)

// New creates a text logger writing to w (stderr in the CLI, keeping stdout
// for reports). Verbose lowers the level to debug.
// It standardizes common keys (e.g., "error" -> "err").
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}))
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

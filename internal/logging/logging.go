// Package logging wires structured, leveled logging (§A) through the
// optimizer and CLI driver. Library packages accept a *slog.Logger via
// constructor injection rather than reaching for a process-wide global, so
// tests can substitute a discarding logger.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New builds the run's logger. verbose sets the minimum level to Debug;
// otherwise Info. Records are written as text key=value pairs to w (os.Stderr
// in production), matching the screen-report style the rest of the corpus
// uses for operator-facing output, upgraded to structured fields for the
// per-iteration summaries.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// Discard is a logger that drops every record, for tests and library code
// exercised without a caller-supplied logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Default returns a logger writing to os.Stderr at LevelInfo, for entry
// points that have not been handed a logger explicitly. cmd/rodeo does not
// call it; it builds its logger with New after parsing flags.
func Default() *slog.Logger {
	return New(os.Stderr, false)
}

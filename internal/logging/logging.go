// Package logging configures the diagnostic logger.
//
// Diagnostics go to stderr through zerolog's console writer and are kept
// separate from the user-facing progress printed by internal/tui. Every run
// carries a run_id so a pasted log can be matched to one invocation.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options configures New.
type Options struct {
	Verbose bool      // debug level instead of warn
	Out     io.Writer // defaults to os.Stderr
	NoColor bool
}

// New returns a console logger tagged with a fresh run_id and installs it
// as the zerolog global logger.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	level := zerolog.WarnLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	cw := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    opts.NoColor,
		TimeFormat: time.TimeOnly,
	}
	logger := zerolog.New(cw).
		Level(level).
		With().
		Timestamp().
		Str("run_id", RunID()).
		Logger()
	log.Logger = logger
	return logger
}

var runID = uuid.NewString()

// RunID identifies this process in logs.
func RunID() string { return runID }

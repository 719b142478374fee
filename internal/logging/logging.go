// Package logging builds the zerolog loggers used by SDK instances, the CLI and the
// key server.
//
// Levels follow zerolog's numbering: -1 trace, 0 debug, 1 info, 2 warn, 3 error,
// 4 fatal, 5 panic, 6 no level, 7 disabled.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	Out          io.Writer
	InstanceName string
	Level        zerolog.Level
	NoColor      bool
	JSON         bool
}

// New returns a root logger tagged with the instance name.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: out, NoColor: opts.NoColor, TimeFormat: time.RFC3339}
	}
	ctx := zerolog.New(out).Level(opts.Level).With().Timestamp()
	if opts.InstanceName != "" {
		ctx = ctx.Str("instance", opts.InstanceName)
	}
	return ctx.Logger()
}

// Module returns a child logger for one component.
func Module(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("module", name).Logger()
}

// ParseLevel accepts either a level name ("debug") or its number ("0").
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(s)
}

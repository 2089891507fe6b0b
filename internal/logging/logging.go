// Package logging sets up the dispatcher's root zerolog logger and a
// fixed-capacity ring buffer that feeds the admin facet's GET /logs/events
// stream.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger per the dispatcher's Logging config: level
// in {debug,info,warn,error}, format in {text,json}. Text format uses
// zerolog.ConsoleWriter as a first-class option, not just a dev-only
// special case.
func New(level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var out zerolog.Logger
	if format == "text" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	} else {
		out = zerolog.New(os.Stderr)
	}
	return out.Level(lvl).With().Timestamp().Str("service", "toolbridge-dispatcher").Logger()
}

// Package logger builds the process-wide zerolog logger. Handlers and the
// usecase layer receive it by value; nothing in this package is mutable
// after New returns.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a logger configured for the given environment. In "dev" the
// output is the human-readable console writer; everywhere else it is one
// JSON object per line on stdout.
func New(env string) zerolog.Logger {
	level := zerolog.InfoLevel
	if strings.EqualFold(env, "dev") {
		level = zerolog.DebugLevel
		out := zerolog.ConsoleWriter{Out: os.Stdout}
		return zerolog.New(out).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

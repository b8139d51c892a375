// Package logging builds the process logger every service shares.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns the service logger: structured JSON by default, pretty console
// output when LOG_PRETTY is truthy, level from LOG_LEVEL (default info).
func New(service string) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stderr)
	if pretty := os.Getenv("LOG_PRETTY"); pretty == "1" || strings.EqualFold(pretty, "true") {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return logger.Level(level).With().
		Timestamp().
		Str("service", service).
		Logger()
}

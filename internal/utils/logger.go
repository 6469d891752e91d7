// Package utils holds small helpers shared across the engine's internal
// packages and the CLI: structured logging setup (zerolog) and header
// parsing.
package utils

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global zerolog logger used by every component.
func InitLogger(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// GetLogger returns a logger tagged with the calling component's name.
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

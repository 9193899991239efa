// Package logging configures the process-wide zerolog logger.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// EnvLogLevel overrides the default log level (trace, debug, info, warn,
// error).
const EnvLogLevel = "FORGE_LOG_LEVEL"

// New builds a console logger tagged with the application name. FORGE_LOG_LEVEL
// overrides the info default; an unparseable value is ignored.
func New(app string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	level := zerolog.InfoLevel
	if raw := os.Getenv(EnvLogLevel); raw != "" {
		if parsed, err := zerolog.ParseLevel(raw); err == nil {
			level = parsed
		}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

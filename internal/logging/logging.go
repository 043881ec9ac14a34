package logging

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/rowan/backstop/pkg/config"
)

// NewLogger creates the process-wide structured logger. Logs go to the
// configured log file when one is set, otherwise to stdout.
func NewLogger(cfg *config.Config) zerolog.Logger {
	out := os.Stdout
	if cfg.LogFile != "" {
		if f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640); err == nil {
			out = f
		}
	}

	logger := zerolog.New(out).With().Timestamp().Str("service", "backstop").Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

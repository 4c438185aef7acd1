// Package logging provides structured logging for the wsi event service
// using zerolog. Terminals get human-readable console output, everything
// else gets JSON.
//
// Example usage:
//
//	log := logging.Default()
//	log.Info().Int("batch_size", len(batch)).Msg("Reconciled batch")
//
//	ctx := logging.WithSubscription(context.Background(), 3)
//	logging.Ctx(ctx).Debug().Msg("Realigned view")
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// defaultLogger backs Default and the package-level event helpers.
	defaultLogger zerolog.Logger

	// Nop discards everything.
	Nop = zerolog.Nop()
)

func init() {
	defaultLogger = newDefault()
}

// newDefault reads LOG_LEVEL and LOG_FORMAT; DEBUG=1 without a level
// means debug.
func newDefault() zerolog.Logger {
	cfg := DefaultConfig()
	cfg.Level = os.Getenv("LOG_LEVEL")
	if cfg.Level == "" && os.Getenv("DEBUG") != "" {
		cfg.Level = "debug"
	}
	cfg.Format = envOr("LOG_FORMAT", cfg.Format)
	return NewLoggerFromConfig(cfg)
}

// Default returns the process-wide logger. Components fall back to it
// when no logger is injected.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault replaces the process-wide logger, including zerolog's global
// log.Logger.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
	log.Logger = logger
}

// NewJSON returns a JSON logger writing to w, or to stderr when w is nil.
func NewJSON(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(w).Level(zerolog.GlobalLevel()).With().Timestamp().Logger()
}

// Debug starts a debug entry on the default logger.
func Debug() *zerolog.Event { return defaultLogger.Debug() }

// Info starts an info entry on the default logger.
func Info() *zerolog.Event { return defaultLogger.Info() }

// Warn starts a warning entry on the default logger.
func Warn() *zerolog.Event { return defaultLogger.Warn() }

// Error starts an error entry on the default logger.
func Error() *zerolog.Event { return defaultLogger.Error() }

// Err starts an entry for err on the default logger: error level, or info
// when err is nil.
func Err(err error) *zerolog.Event { return defaultLogger.Err(err) }

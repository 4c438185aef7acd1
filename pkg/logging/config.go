package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/agentstation/wsi/pkg/constants"
)

// Config describes a logger. The zero value logs info and above as JSON
// to stderr.
type Config struct {
	Level      string         // trace, debug, info, warn, error, off
	Format     string         // json, console or auto (console on a terminal)
	Output     string         // stderr, stdout, discard or a file path
	TimeFormat string         // kitchen, rfc3339, unix or a Go layout
	NoColor    bool           // console only
	AddCaller  bool           // file:line on every entry
	Fields     map[string]any // attached to every entry
}

// DefaultConfig returns the configuration used by the CLI when nothing
// is set.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "auto",
		Output:     "stderr",
		TimeFormat: "kitchen",
		NoColor:    os.Getenv("NO_COLOR") != "",
		Fields:     make(map[string]any),
	}
}

// NewLoggerFromConfig builds a logger from cfg. It also sets the zerolog
// global level, which bounds every logger in the process.
func NewLoggerFromConfig(cfg *Config) zerolog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	logCtx := zerolog.New(newWriter(cfg)).Level(level).With().Timestamp()
	if cfg.AddCaller || level <= zerolog.DebugLevel {
		logCtx = logCtx.Caller()
	}
	for k, v := range cfg.Fields {
		logCtx = addFieldToContext(logCtx, k, v)
	}
	return logCtx.Logger()
}

// Configure replaces the default logger.
func Configure(cfg *Config) {
	SetDefault(NewLoggerFromConfig(cfg))
}

// ConfigureFromEnv replaces the default logger with one built from
// LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT, LOG_TIME_FORMAT, LOG_CALLER and
// LOG_FIELDS (comma-separated key=value pairs).
func ConfigureFromEnv() {
	cfg := DefaultConfig()
	cfg.Level = envOr("LOG_LEVEL", cfg.Level)
	cfg.Format = envOr("LOG_FORMAT", cfg.Format)
	cfg.Output = envOr("LOG_OUTPUT", cfg.Output)
	cfg.TimeFormat = envOr("LOG_TIME_FORMAT", cfg.TimeFormat)
	cfg.AddCaller = os.Getenv("LOG_CALLER") == "true"
	cfg.Fields = parseFields(os.Getenv("LOG_FIELDS"))
	Configure(cfg)
}

func newWriter(cfg *Config) io.Writer {
	out := openOutput(cfg.Output)

	format := strings.ToLower(cfg.Format)
	if format == "auto" {
		format = "json"
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = "console"
		}
	}
	if format == "console" || format == "pretty" {
		return zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: parseTimeFormat(cfg.TimeFormat),
			NoColor:    cfg.NoColor,
		}
	}
	return out
}

// openOutput resolves an output name. An unwritable file falls back to
// stderr.
func openOutput(name string) io.Writer {
	switch strings.ToLower(name) {
	case "", "stderr":
		return os.Stderr
	case "stdout":
		return os.Stdout
	case "discard", "none":
		return io.Discard
	}
	file, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		return os.Stderr
	}
	return file
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "", "info":
		return zerolog.InfoLevel
	case "warning":
		return zerolog.WarnLevel
	case "none", "off":
		return zerolog.Disabled
	}
	if l, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
		return l
	}
	return zerolog.InfoLevel
}

func parseTimeFormat(format string) string {
	switch strings.ToLower(format) {
	case "kitchen", "":
		return time.Kitchen
	case "rfc3339":
		return time.RFC3339
	case "rfc3339nano":
		return time.RFC3339Nano
	case "unix", "epoch":
		return ""
	}
	// a Go layout
	if strings.Contains(format, "2006") || strings.Contains(format, "15:04") {
		return format
	}
	return time.Kitchen
}

func parseFields(fields string) map[string]any {
	result := make(map[string]any)
	for _, field := range strings.Split(fields, ",") {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		result[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return result
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

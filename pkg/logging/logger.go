// Package logging sets up the process-wide zerolog logger and hands out
// component loggers derived from it.
//
// Levels: debug for per-key cache decisions, info for stored refreshes and
// lifecycle events, warn for retries, throttling and partial page fetches,
// error for persistence failures and exhausted upstream requests.
//
// Common fields: component, cache_type, key, layer, status_code,
// error_class, minute_remaining, daily_remaining.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a case-insensitive level name as found in configuration.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

var levels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
}

// Zerolog returns the zerolog level for l.
func (l LogLevel) Zerolog() (zerolog.Level, error) {
	lvl, ok := levels[strings.ToLower(strings.TrimSpace(string(l)))]
	if !ok {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", string(l))
	}
	return lvl, nil
}

// Validate reports whether Setup understands l.
func (l LogLevel) Validate() error {
	_, err := l.Zerolog()
	return err
}

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Service is attached to every line when set.
	Service string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig logs JSON at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Service: "scoreboard-cache",
		Output:  os.Stderr,
	}
}

// Setup installs the global logger and returns it. Unknown levels fall back
// to info; callers validate configuration beforehand.
func Setup(cfg Config) zerolog.Logger {
	level, err := cfg.Level.Zerolog()
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	log.Logger = ctx.Logger()
	return log.Logger
}

// NewLogger derives a logger tagged with component from the global logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Package logger provides JSON structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var globalLogger zerolog.Logger

// Config selects the level and destination of the process logger.
type Config struct {
	Level  string `mapstructure:"log-level"`
	Debug  bool   `mapstructure:"debug"`
	Output string `mapstructure:"log-output"`
}

func init() {
	globalLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339
}

// Init replaces the global logger. Output is "stdout", "stderr" (default)
// or a file path opened for append.
func Init(config Config) (func(), error) {
	var output io.Writer = os.Stderr
	cleanup := func() {}

	switch strings.TrimSpace(config.Output) {
	case "", "stderr":
	case "stdout":
		output = os.Stdout
	default:
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return cleanup, err
		}
		output = f
		cleanup = func() { _ = f.Close() }
	}

	level := zerolog.InfoLevel
	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			cleanup()
			return func() {}, err
		}
	}

	SetOutput(output, level)
	return cleanup, nil
}

// SetOutput points the global logger at w.
func SetOutput(w io.Writer, level zerolog.Level) {
	globalLogger = zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
	log.Logger = globalLogger
}

// WithComponent returns a child logger tagged with the component name.
func WithComponent(component string) zerolog.Logger {
	return globalLogger.With().Str("component", component).Logger()
}

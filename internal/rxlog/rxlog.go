// Package rxlog provides the structured logger every relayx-go subsystem
// shares, adapted from _examples/adred-codev-ws_poc/src/logger.go (zerolog,
// JSON for aggregation, ConsoleWriter for local/dev, leveled helpers).
package rxlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Format selects the log encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatPretty Format = "pretty"
)

// Config controls the base logger every component derives a child from.
type Config struct {
	Debug  bool
	Format Format
}

// New builds a base logger. Debug gates the minimum level (debug vs info),
// mirroring the Python client's `__debug` gate on its `__log` helper.
func New(cfg Config) zerolog.Logger {
	var output io.Writer = os.Stdout

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}

	if cfg.Format == FormatPretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the given subsystem name
// (e.g. "session", "consumer", "queue", "diagnostics").
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

// Package logging builds the zerolog logger used across the CLI.
//
// Output goes to stderr so stdout stays reserved for command results. On a
// terminal a colored console writer is used; otherwise one JSON object per
// line is written, suitable for journald or a log shipper.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// LevelEnv overrides the default log level when no flag is given.
const LevelEnv = "ACMEDIST_LOG_LEVEL"

// Format selects the output encoding.
type Format int

const (
	// FormatAuto picks FormatConsole on a terminal and FormatJSON otherwise.
	FormatAuto Format = iota
	FormatConsole
	FormatJSON
)

// ParseLevel parses a level name. An empty name falls back to LevelEnv and
// then to info.
func ParseLevel(name string) (zerolog.Level, error) {
	if name == "" {
		name = os.Getenv(LevelEnv)
	}
	if name == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}

// New creates a logger writing to w at the given level.
func New(w io.Writer, level zerolog.Level, format Format) zerolog.Logger {
	if format == FormatAuto {
		format = FormatJSON
		if f, ok := w.(interface{ Fd() uintptr }); ok && isTerminal(f.Fd()) {
			format = FormatConsole
		}
	}

	if format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Setup creates the stderr logger for a command invocation.
func Setup(levelName string) (zerolog.Logger, error) {
	level, err := ParseLevel(levelName)
	if err != nil {
		return zerolog.Nop(), err
	}
	return New(os.Stderr, level, FormatAuto), nil
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

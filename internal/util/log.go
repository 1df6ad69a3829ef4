package util

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger at the given level. Unknown or empty
// levels fall back to info. Set LOG_CONSOLE=1 for human-readable output
// during local runs; the default is JSON lines on stdout.
func NewLogger(level string) zerolog.Logger {
	return newLoggerTo(os.Stdout, level, os.Getenv("LOG_CONSOLE") == "1")
}

func newLoggerTo(w io.Writer, level string, console bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

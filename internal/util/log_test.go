package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevelParsing(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" info ", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := NewLogger(tc.in).GetLevel(); got != tc.want {
			t.Fatalf("NewLogger(%q) level = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestConsoleWriterOutput(t *testing.T) {
	var buf bytes.Buffer
	log := newLoggerTo(&buf, "info", true)
	log.Info().Msg("session open")

	out := buf.String()
	if strings.Contains(out, `"message"`) {
		t.Fatalf("expected console formatting, got JSON: %s", out)
	}
	if !strings.Contains(out, "session open") {
		t.Fatalf("message missing from console output: %s", out)
	}
}

func TestJSONOutputByDefault(t *testing.T) {
	var buf bytes.Buffer
	log := newLoggerTo(&buf, "info", false)
	log.Info().Str("symbol", "IWM").Msg("session open")

	out := buf.String()
	if !strings.Contains(out, `"symbol":"IWM"`) {
		t.Fatalf("expected JSON fields, got: %s", out)
	}
}

package logger

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelWarn,
	}
	for input, want := range cases {
		got, err := ParseLevel(input)
		if err != nil {
			t.Fatalf("ParseLevel(%q) error = %v", input, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestGetLogger_InitializesOnFirstUse(t *testing.T) {
	defaultLogger = nil
	if GetLogger() == nil {
		t.Fatal("expected GetLogger to lazily initialize a default logger")
	}
	if defaultLogger == nil {
		t.Fatal("expected GetLogger to populate defaultLogger")
	}
}

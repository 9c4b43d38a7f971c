package util

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LevelWarn, &buf)
	logger.Debugf("hidden debug")
	logger.Infof("hidden info")
	logger.Warnf("visible warn")
	logger.Errorf("visible error")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected filtered lines to be dropped, got %q", out)
	}
	if !strings.Contains(out, "[WARN] visible warn") {
		t.Fatalf("expected warn line, got %q", out)
	}
	if !strings.Contains(out, "[ERROR] visible error") {
		t.Fatalf("expected error line, got %q", out)
	}
}

func TestLoggerSetLevelTakesEffect(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LevelError, &buf)
	logger.Infof("dropped")
	logger.SetLevel(LevelDebug)
	logger.Debugf("kept")
	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("expected info line to be filtered, got %q", out)
	}
	if !strings.Contains(out, "[DEBUG] kept") {
		t.Fatalf("expected debug line after lowering level, got %q", out)
	}
}

func TestParseLogLevelDefaultsToInfo(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"Warn":    LevelWarn,
		"error":   LevelError,
		"verbose": LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Fatalf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

package utils

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func setupTestLogger(output *bytes.Buffer, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	SetLoggerForTest(zerolog.New(output).With().Timestamp().Logger().Level(lvl))
}

func TestInitLoggerAndSetLogLevelFallback(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "reportcard.log")
	InitLogger(logFile, 1, 1, 1, false, "invalid")
	SetLogLevel("invalid")
	Info("hello", "k", "v")
	Warn("warn")
	Error("error")
}

func TestInfoLogging(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "info")

	Info("test message", "foo", 42, "bar", true)

	out := buf.String()
	if !strings.Contains(out, "test message") {
		t.Error("Expected log message not found in output")
	}
	if !strings.Contains(out, `"foo":42`) || !strings.Contains(out, `"bar":true`) {
		t.Error("Expected key-value pairs not found in output")
	}
}

func TestErrorValuesAndDanglingKey(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "debug")

	Error("render failed", "error", errors.New("boom"), "dangling")

	out := buf.String()
	if !strings.Contains(out, `"error":"boom"`) {
		t.Errorf("expected error field, got %s", out)
	}
	if strings.Contains(out, "dangling") {
		t.Errorf("dangling key should be dropped, got %s", out)
	}
}

func TestSetLogLevel(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "warn")

	Info("hidden")
	SetLogLevel("info")
	Info("should be visible")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info log emitted while level was warn")
	}
	if !strings.Contains(buf.String(), "should be visible") {
		t.Error("Expected info log after SetLogLevel not found")
	}
}

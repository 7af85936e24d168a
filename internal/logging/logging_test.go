package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewDisabledDiscardsOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Enabled: false, Output: &buf})
	l.Info("should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected no output for disabled logger, got %q", buf.String())
	}
}

func TestNewWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Enabled: true, Output: &buf, Level: LevelInfo})
	l.Info("hello world")
	if !strings.Contains(buf.String(), "hello world") {
		t.Errorf("expected log output to contain message, got %q", buf.String())
	}
}

func TestCriticalUsesCriticalLevelLabel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Enabled: true, Output: &buf, Level: LevelInfo})
	l.Critical("config load failed")
	if !strings.Contains(buf.String(), "CRITICAL") {
		t.Errorf("expected CRITICAL level label, got %q", buf.String())
	}
}

func TestDebugFilteredByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Enabled: true, Output: &buf, Level: LevelInfo})
	l.Debug("should be filtered")
	if strings.Contains(buf.String(), "should be filtered") {
		t.Errorf("expected debug message to be filtered at info level")
	}
}

package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("visible")
	l.Error("also visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("suppressed levels leaked: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn output missing: %q", out)
	}
}

func TestStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	l.Info("transport established", "peer", "0a0b", "shm", true)
	out := buf.String()
	if !strings.Contains(out, "peer=0a0b") {
		t.Errorf("field missing from output: %q", out)
	}
}

func TestDefaultLogger(t *testing.T) {
	first := Default()
	if first == nil {
		t.Fatal("no default logger")
	}
	if Default() != first {
		t.Error("default logger not stable")
	}

	var buf bytes.Buffer
	replacement := NewLogger(&Config{Level: LevelInfo, Output: &buf})
	SetDefault(replacement)
	defer SetDefault(first)
	if Default() != replacement {
		t.Error("SetDefault not observed")
	}
}

func TestPrintfStyle(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: LevelDebug, Output: &buf})
	l.Infof("queue %d ready", 3)
	if !strings.Contains(buf.String(), "queue 3 ready") {
		t.Errorf("printf output wrong: %q", buf.String())
	}
}

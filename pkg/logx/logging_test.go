package logx

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestZeroLoggerIsNoop(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero Logger should report IsZero")
	}
	// must not panic
	l.Info("hello", String("k", "v"))
	l.With(Int("n", 1)).Warn("still quiet")
}

func TestWriterLoggerFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := NewWriter(&buf, "debug").With(String("comp", "timers"))
	l.Debug("tick", Int("id", 7), Float64("since", 2.5))

	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if m["message"] != "tick" {
		t.Fatalf("message = %v, want tick", m["message"])
	}
	if m["comp"] != "timers" {
		t.Fatalf("comp = %v, want timers", m["comp"])
	}
	if m["id"] != float64(7) {
		t.Fatalf("id = %v, want 7", m["id"])
	}
}

func TestWriterLoggerLevelFilter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn")
	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %q", buf.String())
	}
	if l.Enabled(LevelInfo) {
		t.Fatal("info should not be enabled at warn level")
	}
	if !l.Enabled(LevelError) {
		t.Fatal("error should be enabled at warn level")
	}
}

func TestServiceFileSinkAndRateLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.log")
	svc, l := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}, RatePerSec: 1})
	t.Cleanup(func() { _ = svc.Close() })

	l.Info("first")
	for i := 0; i < 5; i++ {
		l.Warn("overrun")
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if got := strings.Count(string(b), "overrun"); got != 1 {
		t.Fatalf("overrun lines = %d, want 1 (rate limited)", got)
	}
	if !strings.Contains(string(b), "first") {
		t.Fatalf("info line missing: %q", string(b))
	}
	if svc.Suppressed() != 4 {
		t.Fatalf("Suppressed = %d, want 4", svc.Suppressed())
	}
}

func TestValidLevel(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"", "debug", "INFO", " warn ", "error", "trace"} {
		if !ValidLevel(s) {
			t.Fatalf("ValidLevel(%q) = false", s)
		}
	}
	if ValidLevel("loud") {
		t.Fatal("ValidLevel(loud) = true")
	}
}

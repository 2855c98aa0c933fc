package logx

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	if lvl, ok := ParseLevel("warning"); !ok || lvl != LevelWarn {
		t.Fatalf("ParseLevel(warning) = %v, %v", lvl, ok)
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatal("expected unknown level to be rejected")
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Info("nothing happens", String("k", "v"))
	l.With(Int("n", 1)).Error("still nothing")
}

func TestConsoleLoggerRespectsLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := New(&buf, "warn")
	l.Info("hidden")
	l.Warn("shown", String("comp", "test"))
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line leaked at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "comp=test") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestServiceFileSinkWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "plannerbot.log")
	svc, log := NewService(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	t.Cleanup(func() { _ = svc.Close() })

	log.With(String("comp", "reminder")).Debug("scheduled", Int("lead", 30))

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(b), &m); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, b)
	}
	if m["message"] != "scheduled" || m["comp"] != "reminder" || m["lead"] != float64(30) {
		t.Fatalf("unexpected log fields: %v", m)
	}

	svc.Apply(Config{Level: "error", File: FileConfig{Enabled: true, Path: path}})
	log.Info("dropped after apply")
	b, _ = os.ReadFile(path)
	if strings.Contains(string(b), "dropped after apply") {
		t.Fatal("Apply did not raise the level")
	}
}

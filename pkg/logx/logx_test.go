package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoggerWritesFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(&buf, "debug").With(String("comp", "poller"))
	log.Info("poll done", Int("items", 3), Err(errors.New("partial")))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("output not JSON: %v (%s)", err, buf.String())
	}
	if m["comp"] != "poller" || m["message"] != "poll done" || m["items"] != float64(3) || m["err"] != "partial" {
		t.Fatalf("unexpected record: %v", m)
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(&buf, "warn")
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %s", buf.String())
	}
	if log.Enabled(LevelInfo) || !log.Enabled(LevelError) {
		t.Fatal("Enabled disagrees with configured level")
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Error("dropped")
}

func TestFormatChatLine(t *testing.T) {
	t.Parallel()
	got := formatChatLine([]byte(`{"level":"error","message":"scrape failed","url":"https://x","attempt":3,"time":"t"}`))
	want := "[ERROR] scrape failed\n- attempt=3\n- url=https://x"
	if got != want {
		t.Fatalf("formatChatLine = %q, want %q", got, want)
	}
	if !strings.HasPrefix(formatChatLine([]byte("not json")), "not json") {
		t.Fatal("raw line not passed through")
	}
}

func TestValidLevel(t *testing.T) {
	t.Parallel()
	for _, ok := range []string{"", "info", "WARN", "debug"} {
		if err := ValidLevel(ok); err != nil {
			t.Fatalf("ValidLevel(%q) = %v", ok, err)
		}
	}
	if ValidLevel("loud") == nil {
		t.Fatal("expected error for unknown level")
	}
}

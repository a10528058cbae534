package transcript

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLogger(t *testing.T, global bool) (Logger, string, string) {
	t.Helper()
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global", "all.ndjson")
	l, err := NewLogger(Config{
		Enabled:       true,
		Dir:           filepath.Join(dir, "sessions"),
		GlobalEnabled: global,
		GlobalPath:    globalPath,
		QueueSize:     64,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	return l, filepath.Join(dir, "sessions"), globalPath
}

func readLines(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var events []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("bad NDJSON line %q: %v", sc.Text(), err)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return events
}

func TestLogWritesPerUserFile(t *testing.T) {
	t.Parallel()

	l, dir, _ := newTestLogger(t, false)
	l.Log(Event{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		UserID:     "anon_0123456789abcdef0123456789abcdef",
		SessionID:  "sess-1",
		TabID:      "tab-1",
		Channel:    "http",
		Direction:  "out",
		EventType:  "generator_turn",
		ContentRaw: "TACTICS: Authority\n---\nThis is Agent Mike.",
	})
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	path := filepath.Join(dir, "anon_0123456789abcdef0123456789abcdef", "tab-1.ndjson")
	events := readLines(t, path)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].EventType != "generator_turn" || events[0].SessionID != "sess-1" {
		t.Fatalf("event lost fields: %+v", events[0])
	}
	if events[0].Content == "" {
		t.Fatal("expected cleaned content to be populated")
	}
}

func TestLogMirrorsToGlobalFile(t *testing.T) {
	t.Parallel()

	l, _, globalPath := newTestLogger(t, true)
	for i := 0; i < 3; i++ {
		l.Log(Event{
			UserID:     "anon_0123456789abcdef0123456789abcdef",
			SessionID:  "sess-1",
			EventType:  "user_turn",
			ContentRaw: "I never set up alerts on this account.",
		})
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	events := readLines(t, globalPath)
	if len(events) != 3 {
		t.Fatalf("expected 3 events in global file, got %d", len(events))
	}
}

func TestDisabledLoggerIsNoop(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l, err := NewLogger(Config{Enabled: false, Dir: filepath.Join(dir, "never")}, nil)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if _, ok := l.(NoopLogger); !ok {
		t.Fatalf("expected NoopLogger, got %T", l)
	}
	l.Log(Event{UserID: "u", ContentRaw: "x"})
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "never")); !os.IsNotExist(err) {
		t.Fatal("disabled logger must not create directories")
	}
}

func TestCleanForReadability(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"ansi color", "\x1b[31malert\x1b[0m now", "alert now"},
		{"control chars", "a\x07b\x00c", "abc"},
		{"keeps newlines", "line one\nline two", "line one\nline two"},
		{"trims", "  padded  ", "padded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CleanForReadability(tt.in); got != tt.want {
				t.Fatalf("CleanForReadability(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// Package transcript provides asynchronous NDJSON logging of game
// conversations, one file per user/tab plus an optional global file.
package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Event is one transcript record. ContentRaw carries the wire text verbatim;
// Content is a cleaned copy for human review.
type Event struct {
	Timestamp  string         `json:"ts"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	TabID      string         `json:"tab_id,omitempty"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	ContentRaw string         `json:"content_raw"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Logger records transcript events.
type Logger interface {
	Log(event Event)
	Close() error
}

// Config controls transcript logging.
type Config struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// NewLogger creates a transcript logger. When disabled it returns a no-op
// implementation.
func NewLogger(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return NoopLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}
	if cfg.GlobalEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0755); err != nil {
			return nil, fmt.Errorf("create global transcript directory: %w", err)
		}
	}

	l := &fileLogger{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// NoopLogger discards every event.
type NoopLogger struct{}

func (NoopLogger) Log(Event)    {}
func (NoopLogger) Close() error { return nil }

type fileLogger struct {
	cfg    Config
	logger *slog.Logger
	queue  chan Event
	done   chan struct{}
	once   sync.Once
}

// Log enqueues an event. A full queue drops the event rather than blocking
// the request path.
func (l *fileLogger) Log(event Event) {
	if event.Content == "" {
		event.Content = CleanForReadability(event.ContentRaw)
	}
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("transcript queue full, dropping event", "event_type", event.EventType)
	}
}

// Close drains the queue and stops the writer goroutine.
func (l *fileLogger) Close() error {
	l.once.Do(func() { close(l.queue) })
	<-l.done
	return nil
}

func (l *fileLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		l.write(event)
	}
}

func (l *fileLogger) write(event Event) {
	line, err := json.Marshal(event)
	if err != nil {
		l.logger.Warn("failed to marshal transcript event", "error", err)
		return
	}
	line = append(line, '\n')

	tab := event.TabID
	if tab == "" {
		tab = "default"
	}
	dir := filepath.Join(l.cfg.Dir, sanitizePathComponent(event.UserID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		l.logger.Warn("failed to create transcript user directory", "error", err)
		return
	}
	path := filepath.Join(dir, sanitizePathComponent(tab)+".ndjson")
	appendLine(l.logger, path, line)

	if l.cfg.GlobalEnabled {
		appendLine(l.logger, l.cfg.GlobalPath, line)
	}
}

func appendLine(logger *slog.Logger, path string, line []byte) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logger.Warn("failed to open transcript file", "path", path, "error", err)
		return
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Warn("failed to close transcript file", "path", path, "error", closeErr)
		}
	}()
	if _, err := f.Write(line); err != nil {
		logger.Warn("failed to write transcript line", "path", path, "error", err)
	}
}

func sanitizePathComponent(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

// CleanForReadability strips ANSI escape sequences and control characters so
// transcripts stay greppable.
func CleanForReadability(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	inEscape := false
	for _, r := range raw {
		switch {
		case inEscape:
			// CSI sequences end on a letter.
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r < 0x20:
			// Drop other control characters.
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

var (
	ansiPattern     = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]|\x1b\][^\x07]*\x07`)
	pathUnsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// ConversationLogEvent is one line in a conversation log.
type ConversationLogEvent struct {
	Timestamp  string         `json:"ts"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	ContentRaw string         `json:"content_raw"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ConversationLogger records conversation events without blocking callers.
type ConversationLogger interface {
	Log(event ConversationLogEvent)
	Close() error
}

type noopConversationLogger struct{}

func (noopConversationLogger) Log(ConversationLogEvent) {}
func (noopConversationLogger) Close() error             { return nil }

// fileConversationLogger appends events to dir/<user>/<session>.ndjson and,
// optionally, to one global file. A single goroutine owns all file writes.
type fileConversationLogger struct {
	cfg    ConversationLogConfig
	queue  chan ConversationLogEvent
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewConversationLogger creates a conversation logger. A disabled config
// returns a logger that discards events.
func NewConversationLogger(cfg ConversationLogConfig, logger *slog.Logger) (ConversationLogger, error) {
	if !cfg.Enabled {
		return noopConversationLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		return nil, errors.New("conversation log dir is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}
	if cfg.GlobalEnabled {
		if cfg.GlobalPath == "" {
			return nil, errors.New("conversation log global path is required")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o755); err != nil {
			return nil, fmt.Errorf("create global conversation log dir: %w", err)
		}
	}

	l := &fileConversationLogger{
		cfg:    cfg,
		queue:  make(chan ConversationLogEvent, cfg.QueueSize),
		logger: logger,
	}
	l.wg.Add(1)
	go l.run()
	return l, nil
}

// Log queues event. When the queue is full the oldest event is dropped.
func (l *fileConversationLogger) Log(event ConversationLogEvent) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if event.Content == "" {
		event.Content = cleanForReadability(event.ContentRaw)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}

	select {
	case l.queue <- event:
		return
	default:
	}

	select {
	case <-l.queue:
		l.logger.Warn("conversation log queue full, dropped oldest event", "user_id", event.UserID)
	default:
	}
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("conversation log queue full, dropped event", "user_id", event.UserID)
	}
}

func (l *fileConversationLogger) run() {
	defer l.wg.Done()
	for event := range l.queue {
		l.write(event)
	}
}

func (l *fileConversationLogger) write(event ConversationLogEvent) {
	line, err := json.Marshal(event)
	if err != nil {
		l.logger.Warn("failed to marshal conversation event", "error", err)
		return
	}
	line = append(line, '\n')

	path := filepath.Join(l.cfg.Dir, safePathSegment(event.UserID), safePathSegment(event.SessionID)+".ndjson")
	if err := appendLine(path, line); err != nil {
		l.logger.Warn("failed to write conversation log", "path", path, "error", err)
	}
	if l.cfg.GlobalEnabled {
		if err := appendLine(l.cfg.GlobalPath, line); err != nil {
			l.logger.Warn("failed to write global conversation log", "path", l.cfg.GlobalPath, "error", err)
		}
	}
}

// Close flushes queued events and stops the writer.
func (l *fileConversationLogger) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()

		done := make(chan struct{})
		go func() {
			l.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			l.logger.Warn("conversation logger shutdown timeout")
		}
	})
	return nil
}

func appendLine(path string, line []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func safePathSegment(s string) string {
	s = pathUnsafeChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" || s == "." || s == ".." {
		return "unknown"
	}
	return s
}

// cleanForReadability strips ANSI escapes and control characters other than
// newlines and tabs.
func cleanForReadability(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

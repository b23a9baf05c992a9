// Package tasklog records task execution logs as newline-delimited JSON
// and archives screenshots alongside them. The engine treats every call
// as best-effort: logging failures never fail a task.
package tasklog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger is the task-logging contract consumed by the execution engine.
type Logger interface {
	// StartTaskLog opens a fresh log for one task run and returns its path.
	StartTaskLog(taskName string) (string, error)
	Log(event Event) error
	// SaveScreenshot archives PNG bytes and returns the saved path.
	SaveScreenshot(png []byte, prefix string) (string, error)
	Flush() error
	Close() error
}

// FileLogger writes one JSONL log file per task run plus PNG screenshots
// into a sibling directory.
type FileLogger struct {
	logDir        string
	screenshotDir string

	mu      sync.Mutex
	file    *os.File
	enc     *json.Encoder
	path    string
	runID   string
	counter int
}

// NewFileLogger creates a logger rooted at the given directories, creating
// them if needed.
func NewFileLogger(logDir, screenshotDir string) (*FileLogger, error) {
	for _, dir := range []string{logDir, screenshotDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
	}
	return &FileLogger{logDir: logDir, screenshotDir: screenshotDir}, nil
}

// StartTaskLog opens a new timestamped log file for one task run. A
// previous run's file, if still open, is closed first.
func (l *FileLogger) StartTaskLog(taskName string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close() //nolint:errcheck
		l.file = nil
	}

	l.runID = uuid.NewString()[:8]
	l.counter = 0
	ts := time.Now().UTC().Format("20060102T150405Z")
	name := fmt.Sprintf("%s-%s-%s.jsonl", ts, sanitize(taskName), l.runID)
	path := filepath.Join(l.logDir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("opening task log: %w", err)
	}
	l.file = f
	l.enc = json.NewEncoder(f)
	l.path = path
	return path, nil
}

// Log writes a single event as one JSON line.
func (l *FileLogger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.enc == nil {
		return fmt.Errorf("task log not started")
	}
	return l.enc.Encode(event)
}

// SaveScreenshot writes PNG bytes under the screenshot directory, named by
// the current run and a per-run sequence number.
func (l *FileLogger) SaveScreenshot(png []byte, prefix string) (string, error) {
	l.mu.Lock()
	l.counter++
	name := fmt.Sprintf("%s-%s-%03d.png", sanitize(prefix), l.runID, l.counter)
	l.mu.Unlock()

	path := filepath.Join(l.screenshotDir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("saving screenshot: %w", err)
	}
	return path, nil
}

// Flush forces buffered log data to disk.
func (l *FileLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Sync()
}

// Close closes the current log file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.enc = nil
	return err
}

// Path returns the current log file path.
func (l *FileLogger) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		case r == ' ':
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "task"
	}
	return string(out)
}

// NopLogger discards all events. Useful as a default when logging is
// disabled.
type NopLogger struct{}

func (NopLogger) StartTaskLog(string) (string, error) { return "", nil }

func (NopLogger) Log(Event) error { return nil }

func (NopLogger) SaveScreenshot([]byte, string) (string, error) { return "", nil }

func (NopLogger) Flush() error { return nil }

func (NopLogger) Close() error { return nil }

var (
	_ Logger = (*FileLogger)(nil)
	_ Logger = NopLogger{}
)

package tasklog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *FileLogger {
	t.Helper()
	dir := t.TempDir()
	logger, err := NewFileLogger(filepath.Join(dir, "logs"), filepath.Join(dir, "screenshots"))
	require.NoError(t, err)
	return logger
}

func TestFileLogger_WritesJSONLines(t *testing.T) {
	logger := newTestLogger(t)

	path, err := logger.StartTaskLog("Invoice Entry")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, ".jsonl"))
	require.Contains(t, filepath.Base(path), "Invoice_Entry")

	require.NoError(t, logger.Log(NewEvent(EventTaskStart, TaskStartData("Invoice Entry", map[string]string{"name": "Ada"}, 2))))
	require.NoError(t, logger.Log(NewEvent(EventStepStart, StepStartData(0, "open form"))))
	require.NoError(t, logger.Flush())
	require.NoError(t, logger.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, events, 2)
	require.Equal(t, EventTaskStart, events[0].Type)
	require.Equal(t, "Invoice Entry", events[0].Data["task_name"])
	require.Equal(t, EventStepStart, events[1].Type)
	require.Equal(t, "open form", events[1].Data["description"])
	require.False(t, events[0].Timestamp.IsZero())
}

func TestFileLogger_LogBeforeStartFails(t *testing.T) {
	logger := newTestLogger(t)
	require.Error(t, logger.Log(NewEvent(EventError, nil)))
}

func TestFileLogger_SaveScreenshot(t *testing.T) {
	logger := newTestLogger(t)
	_, err := logger.StartTaskLog("T")
	require.NoError(t, err)

	first, err := logger.SaveScreenshot([]byte("png-bytes"), "expect")
	require.NoError(t, err)
	second, err := logger.SaveScreenshot([]byte("more-bytes"), "expect")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	data, err := os.ReadFile(first)
	require.NoError(t, err)
	require.Equal(t, []byte("png-bytes"), data)
	require.True(t, strings.HasSuffix(first, ".png"))
}

func TestFileLogger_NewRunResetsScreenshotCounter(t *testing.T) {
	logger := newTestLogger(t)

	_, err := logger.StartTaskLog("T")
	require.NoError(t, err)
	first, err := logger.SaveScreenshot([]byte("a"), "x")
	require.NoError(t, err)

	_, err = logger.StartTaskLog("T")
	require.NoError(t, err)
	second, err := logger.SaveScreenshot([]byte("b"), "x")
	require.NoError(t, err)

	// Different run IDs keep the names distinct even with reset counters.
	require.NotEqual(t, first, second)
}

func TestArchive(t *testing.T) {
	logger := newTestLogger(t)
	path, err := logger.StartTaskLog("T")
	require.NoError(t, err)
	require.NoError(t, logger.Log(NewEvent(EventTaskComplete, TaskCompleteData(true, "", 1, 12)))) //nolint:errcheck
	require.NoError(t, logger.Close())

	archivePath, err := Archive(path)
	require.NoError(t, err)
	require.Equal(t, path+".gz", archivePath)

	// Original is gone; archive decompresses back to the JSONL content.
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	f, err := os.Open(archivePath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	content, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.Contains(t, string(content), "task_complete")
}

func TestNopLogger(t *testing.T) {
	var logger Logger = NopLogger{}
	path, err := logger.StartTaskLog("T")
	require.NoError(t, err)
	require.Empty(t, path)
	require.NoError(t, logger.Log(NewEvent(EventAction, nil)))
	p, err := logger.SaveScreenshot([]byte("x"), "p")
	require.NoError(t, err)
	require.Empty(t, p)
	require.NoError(t, logger.Flush())
}

func TestSanitize(t *testing.T) {
	require.Equal(t, "Invoice_Entry", sanitize("Invoice Entry"))
	require.Equal(t, "task", sanitize("///"))
	require.Equal(t, "a-b_c1", sanitize("a-b_c1"))
}

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mblbot/mblbot/internal/engine"
	"github.com/mblbot/mblbot/internal/mbl"
)

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	require.Equal(t, "2.5s", formatDuration(2500*time.Millisecond))
}

func TestPrintResult_Success(t *testing.T) {
	task := &mbl.TaskDefinition{Name: "Invoice Entry"}
	result := &engine.TaskExecutionResult{
		Success:         true,
		StepsCompleted:  3,
		StepsTotal:      3,
		DurationMs:      1200,
		TotalTokensUsed: 456,
		Outputs:         map[string]string{"total": "42.00", "invoice_id": "INV-17"},
	}

	out := &bytes.Buffer{}
	printResult(out, task, result)

	text := out.String()
	require.Contains(t, text, "PASSED")
	require.Contains(t, text, "3/3")
	require.Contains(t, text, "456")
	require.Contains(t, text, "invoice_id")
	require.Contains(t, text, "42.00")
}

func TestPrintResult_Failure(t *testing.T) {
	task := &mbl.TaskDefinition{Name: "T"}
	result := &engine.TaskExecutionResult{
		Success:        false,
		Error:          `element "Save" not found: gone`,
		FailedAtStep:   "save form",
		StepsCompleted: 1,
		StepsTotal:     2,
		ScreenshotPath: "/tmp/shot.png",
	}

	out := &bytes.Buffer{}
	printResult(out, task, result)

	text := out.String()
	require.Contains(t, text, "FAILED")
	require.Contains(t, text, "save form")
	require.Contains(t, text, `element "Save" not found`)
	require.Contains(t, text, "/tmp/shot.png")
}

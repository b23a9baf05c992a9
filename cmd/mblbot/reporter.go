package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/mblbot/mblbot/internal/engine"
	"github.com/mblbot/mblbot/internal/mbl"
)

// formatDuration formats a duration in a consistent, human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(100 * time.Millisecond).String()
}

// terminalWidth returns the current terminal width, with a sane fallback
// for pipes and CI.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// printResult renders a task execution result as a compact report.
func printResult(out io.Writer, task *mbl.TaskDefinition, result *engine.TaskExecutionResult) {
	status := "PASSED"
	if !result.Success {
		status = "FAILED"
	}

	fmt.Fprintf(out, "\nTask %q: %s\n", task.Name, status)
	fmt.Fprintf(out, "  Steps:    %d/%d completed\n", result.StepsCompleted, result.StepsTotal)
	fmt.Fprintf(out, "  Duration: %s\n", formatDuration(time.Duration(result.DurationMs)*time.Millisecond))
	fmt.Fprintf(out, "  Tokens:   %d\n", result.TotalTokensUsed)

	if result.Error != "" {
		fmt.Fprintf(out, "  Error:    %s\n", result.Error)
		if result.FailedAtStep != "" {
			fmt.Fprintf(out, "  At step:  %s\n", result.FailedAtStep)
		}
	}
	if result.LogFile != "" {
		fmt.Fprintf(out, "  Log:      %s\n", result.LogFile)
	}
	if result.ScreenshotPath != "" {
		fmt.Fprintf(out, "  Screen:   %s\n", result.ScreenshotPath)
	}

	if len(result.Outputs) > 0 {
		fmt.Fprintf(out, "\nOutputs:\n")
		printOutputsTable(out, result.Outputs)
	}
}

// printOutputsTable renders output variables as an aligned two-column
// table, truncating values to the terminal width.
func printOutputsTable(out io.Writer, outputs map[string]string) {
	names := make([]string, 0, len(outputs))
	nameWidth := 0
	for name := range outputs {
		names = append(names, name)
		if w := runewidth.StringWidth(name); w > nameWidth {
			nameWidth = w
		}
	}
	sort.Strings(names)

	valueWidth := terminalWidth() - nameWidth - 6
	if valueWidth < 10 {
		valueWidth = 10
	}

	for _, name := range names {
		value := strings.ReplaceAll(outputs[name], "\n", " ")
		value = runewidth.Truncate(value, valueWidth, "…")
		fmt.Fprintf(out, "  %s  %s\n", runewidth.FillRight(name, nameWidth), value)
	}
}

package engine

// TaskExecutionResult is what Execute returns to the caller: success or a
// classified failure, the produced outputs, and enough pointers into the
// log artifacts to diagnose the run.
type TaskExecutionResult struct {
	Success      bool              `json:"success"`
	Error        string            `json:"error,omitempty"`
	FailedAtStep string            `json:"failed_at_step,omitempty"`
	Outputs      map[string]string `json:"outputs"`

	StepsCompleted int   `json:"steps_completed"`
	StepsTotal     int   `json:"steps_total"`
	DurationMs     int64 `json:"duration_ms"`

	TotalTokensUsed int    `json:"total_tokens_used"`
	LogFile         string `json:"log_file,omitempty"`
	ScreenshotPath  string `json:"screenshot_path,omitempty"`
}

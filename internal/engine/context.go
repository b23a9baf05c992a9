package engine

import "strings"

// ExecutionContext holds the mutable state of one task run. It is created
// on entry to Execute and discarded when Execute returns; tasks never run
// concurrently, so it is not shared.
type ExecutionContext struct {
	TaskName string

	// Parameters are keyed case-insensitively: names are folded to lower
	// case on entry and on lookup.
	Parameters map[string]string

	// ExtractedValues are keyed case-sensitively, appended as extract
	// actions succeed.
	ExtractedValues map[string]string

	// DeclaredOutputs is the deduplicated sequence of output names in
	// execution order.
	DeclaredOutputs []string

	CurrentStepIndex int
	CurrentStepName  string

	ScreenshotPaths []string
	TotalTokensUsed int
}

func newExecutionContext(taskName string, params map[string]string) *ExecutionContext {
	folded := make(map[string]string, len(params))
	for k, v := range params {
		folded[strings.ToLower(k)] = v
	}
	return &ExecutionContext{
		TaskName:        taskName,
		Parameters:      folded,
		ExtractedValues: map[string]string{},
	}
}

// HasParameter reports whether a parameter is bound, case-insensitively.
func (c *ExecutionContext) HasParameter(name string) bool {
	_, ok := c.Parameters[strings.ToLower(name)]
	return ok
}

// ResolveValue looks a name up for type/select parameter substitution.
// Parameters win over extracted values on collision.
func (c *ExecutionContext) ResolveValue(name string) (string, bool) {
	if v, ok := c.Parameters[strings.ToLower(name)]; ok {
		return v, true
	}
	if v, ok := c.ExtractedValues[name]; ok {
		return v, true
	}
	return "", false
}

// DeclareOutput records an output name once, preserving first-seen order.
func (c *ExecutionContext) DeclareOutput(name string) {
	for _, existing := range c.DeclaredOutputs {
		if existing == name {
			return
		}
	}
	c.DeclaredOutputs = append(c.DeclaredOutputs, name)
}

// AddScreenshot appends a saved screenshot path; the last element is
// always the most recent capture.
func (c *ExecutionContext) AddScreenshot(path string) {
	if path != "" {
		c.ScreenshotPaths = append(c.ScreenshotPaths, path)
	}
}

// LastScreenshot returns the most recent screenshot path, or "".
func (c *ExecutionContext) LastScreenshot() string {
	if len(c.ScreenshotPaths) == 0 {
		return ""
	}
	return c.ScreenshotPaths[len(c.ScreenshotPaths)-1]
}

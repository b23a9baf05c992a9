// Package engine interprets parsed MBL tasks: it walks steps and actions,
// coordinates screenshot → prompt → model → parse → device-action cycles,
// enforces per-step timeouts and expect retries, and dispatches the
// on-timeout / on-error handlers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mblbot/mblbot/internal/mbl"
	"github.com/mblbot/mblbot/internal/protocol"
	"github.com/mblbot/mblbot/internal/remote"
	"github.com/mblbot/mblbot/internal/tasklog"
	"github.com/mblbot/mblbot/internal/vision"
)

const (
	defaultStepTimeout = 30 * time.Second

	// selectOpenDelay is the extra settle time after opening a dropdown,
	// on top of the post-click delay.
	selectOpenDelay = 300 * time.Millisecond
)

// Options holds the timing knobs of the engine.
type Options struct {
	// DefaultStepTimeout applies to steps without their own timeout.
	DefaultStepTimeout time.Duration

	// ExpectRetryIntervals are the sleeps between expect attempts; an
	// expect makes 1+len(ExpectRetryIntervals) attempts in total.
	ExpectRetryIntervals []time.Duration

	PostActionDelay time.Duration
	PostClickDelay  time.Duration
}

// Engine executes one task at a time against a remote desktop and a
// vision model. Status accessors are snapshot-readable from other
// goroutines; execution itself is strictly sequential.
type Engine struct {
	remote remote.Controller
	model  vision.Client
	log    tasklog.Logger
	opts   Options

	mu          sync.Mutex
	running     bool
	currentTask string
	currentStep string
}

// New creates an engine. A nil logger disables task logging.
func New(controller remote.Controller, model vision.Client, logger tasklog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = tasklog.NopLogger{}
	}
	if opts.DefaultStepTimeout <= 0 {
		opts.DefaultStepTimeout = defaultStepTimeout
	}
	return &Engine{
		remote: controller,
		model:  model,
		log:    logger,
		opts:   opts,
	}
}

// IsRunning reports whether a task is currently executing.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// CurrentTaskName returns the running task's name, or "".
func (e *Engine) CurrentTaskName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTask
}

// CurrentStepName returns the running step's description, or "".
func (e *Engine) CurrentStepName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentStep
}

func (e *Engine) begin(taskName string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return false
	}
	e.running = true
	e.currentTask = taskName
	e.currentStep = ""
	return true
}

func (e *Engine) finish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	e.currentTask = ""
	e.currentStep = ""
}

func (e *Engine) setStep(description string) {
	e.mu.Lock()
	e.currentStep = description
	e.mu.Unlock()
}

// Execute runs a validated task with the given parameter bindings. All
// failures after execution starts are reported through the result, never
// as a Go error, so callers always get the diagnostics pointers.
func (e *Engine) Execute(ctx context.Context, task *mbl.TaskDefinition, params map[string]string) *TaskExecutionResult {
	result := &TaskExecutionResult{
		Outputs:    map[string]string{},
		StepsTotal: len(task.Steps),
	}

	if !e.begin(task.Name) {
		result.Error = "another task is already running"
		return result
	}
	defer e.finish()

	start := time.Now()
	ectx := newExecutionContext(task.Name, params)

	for _, input := range task.Inputs {
		if !ectx.HasParameter(input) {
			result.Error = (&MissingInputError{Name: input}).Error()
			result.DurationMs = time.Since(start).Milliseconds()
			return result
		}
	}

	logFile, err := e.log.StartTaskLog(task.Name)
	if err != nil {
		slog.Warn("failed to start task log", "task", task.Name, "error", err)
	}
	result.LogFile = logFile
	e.logEvent(tasklog.EventTaskStart, tasklog.TaskStartData(task.Name, params, len(task.Steps)))

	e.runSteps(ctx, task, ectx, result)

	result.Success = result.Error == ""
	for _, name := range ectx.DeclaredOutputs {
		if v, ok := ectx.ExtractedValues[name]; ok {
			result.Outputs[name] = v
		}
	}
	result.TotalTokensUsed = ectx.TotalTokensUsed
	result.ScreenshotPath = ectx.LastScreenshot()
	result.DurationMs = time.Since(start).Milliseconds()

	e.logEvent(tasklog.EventTaskComplete, tasklog.TaskCompleteData(result.Success, result.Error, result.StepsCompleted, result.DurationMs))
	if err := e.log.Flush(); err != nil {
		slog.Warn("failed to flush task log", "error", err)
	}
	return result
}

func (e *Engine) runSteps(ctx context.Context, task *mbl.TaskDefinition, ectx *ExecutionContext, result *TaskExecutionResult) {
	for i, step := range task.Steps {
		if ctx.Err() != nil {
			result.Error = "Task was cancelled."
			result.FailedAtStep = step.Description
			return
		}

		ectx.CurrentStepIndex = i
		ectx.CurrentStepName = step.Description
		e.setStep(step.Description)
		e.logEvent(tasklog.EventStepStart, tasklog.StepStartData(i, step.Description))
		stepStart := time.Now()

		timeoutSecs := step.TimeoutSeconds
		timeout := e.opts.DefaultStepTimeout
		if timeoutSecs > 0 {
			timeout = time.Duration(timeoutSecs) * time.Second
		} else {
			timeoutSecs = int(timeout / time.Second)
		}

		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		err := e.runActions(stepCtx, ectx, step.Actions)
		cancel()

		if err != nil {
			e.failStep(ctx, stepCtx, task, ectx, step, timeoutSecs, err, result)
			return
		}

		e.logEvent(tasklog.EventStepComplete, tasklog.StepCompleteData(i, step.Description, time.Since(stepStart).Milliseconds()))
		result.StepsCompleted++
	}
}

// failStep classifies a step failure, runs the matching handler, and fills
// in the result. Handlers run under the caller's context, not the expired
// step context; a handler failure is logged and discarded unless the
// handler itself aborts.
func (e *Engine) failStep(ctx, stepCtx context.Context, task *mbl.TaskDefinition, ectx *ExecutionContext, step mbl.Step, timeoutSecs int, err error, result *TaskExecutionResult) {
	result.FailedAtStep = step.Description

	var handler *mbl.ErrorHandler
	switch {
	case ctx.Err() != nil:
		// The caller cancelled; no handler runs.
		err = nil
		result.Error = "Task was cancelled."
	case errors.Is(stepCtx.Err(), context.DeadlineExceeded):
		err = &StepTimedOutError{Step: step.Description, Seconds: timeoutSecs}
		handler = task.OnTimeout
	default:
		var exhausted *ExpectExhaustedError
		var abort *AbortError
		switch {
		case errors.As(err, &exhausted):
			handler = task.OnTimeout
		case errors.As(err, &abort):
			handler = nil
		default:
			handler = task.OnError
		}
	}

	if err != nil {
		result.Error = err.Error()
		e.logEvent(tasklog.EventError, tasklog.ErrorData(err.Error(), map[string]any{"step": step.Description}))
	}

	if handler == nil {
		return
	}
	handlerErr := e.runHandler(ctx, ectx, handler)
	var handlerAbort *AbortError
	if errors.As(handlerErr, &handlerAbort) {
		// An abort inside a handler overrides the original error.
		result.Error = handlerAbort.Error()
	}
}

// runHandler runs an error handler's actions with the same execution
// context, so values extracted by the main body stay visible. It runs
// under the caller token only, never the expired step token. Failures are
// logged and returned for abort inspection but otherwise discarded.
func (e *Engine) runHandler(ctx context.Context, ectx *ExecutionContext, handler *mbl.ErrorHandler) error {
	err := e.runActions(ctx, ectx, handler.Actions)
	if err != nil {
		slog.Warn("error handler failed", "error", err)
		e.logEvent(tasklog.EventError, tasklog.ErrorData("error handler failed: "+err.Error(), nil))
	}
	return err
}

// runActions executes actions in source order, recursing into if-branches.
func (e *Engine) runActions(ctx context.Context, ectx *ExecutionContext, actions []mbl.Action) error {
	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.runAction(ctx, ectx, action); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) runAction(ctx context.Context, ectx *ExecutionContext, action mbl.Action) error {
	switch a := action.(type) {
	case mbl.ExpectAction:
		return e.runExpect(ctx, ectx, a)
	case mbl.ClickAction:
		return e.runClick(ctx, ectx, a.Target, e.remote.Click, "click")
	case mbl.DoubleClickAction:
		return e.runClick(ctx, ectx, a.Target, e.remote.DoubleClick, "double_click")
	case mbl.RightClickAction:
		return e.runClick(ctx, ectx, a.Target, e.remote.RightClick, "right_click")
	case mbl.TypeAction:
		return e.runType(ctx, ectx, a)
	case mbl.SelectAction:
		return e.runSelect(ctx, ectx, a)
	case mbl.KeyAction:
		e.logAction("key", map[string]any{"combo": a.Combo})
		if err := e.remote.SendKeyCombo(ctx, a.Combo); err != nil {
			return err
		}
		return sleepCtx(ctx, e.opts.PostActionDelay)
	case mbl.ExtractAction:
		return e.runExtract(ctx, ectx, a)
	case mbl.OutputAction:
		e.logAction("output", map[string]any{"variable": a.Variable})
		ectx.DeclareOutput(a.Variable)
		return nil
	case mbl.ScreenshotAction:
		e.logAction("screenshot", nil)
		_, err := e.capture(ctx, ectx, "manual")
		return err
	case mbl.AbortAction:
		e.logAction("abort", map[string]any{"message": a.Message})
		return &AbortError{Message: a.Message}
	case mbl.IfScreenShowsAction:
		return e.runIf(ctx, ectx, a)
	default:
		return fmt.Errorf("unhandled action type %T", action)
	}
}

func (e *Engine) runExpect(ctx context.Context, ectx *ExecutionContext, a mbl.ExpectAction) error {
	e.logAction("expect", map[string]any{"description": a.Description})

	attempts := 1 + len(e.opts.ExpectRetryIntervals)
	lastText := ""
	for attempt := 0; attempt < attempts; attempt++ {
		png, err := e.capture(ctx, ectx, "expect")
		if err != nil {
			return err
		}
		text, err := e.callModel(ctx, ectx, png, protocol.ExpectPrompt(a.Description), "expect")
		if err != nil {
			return err
		}
		lastText = text

		if protocol.ParseExpect(text) == protocol.ExpectMatch {
			return nil
		}
		if attempt < attempts-1 {
			if err := sleepCtx(ctx, e.opts.ExpectRetryIntervals[attempt]); err != nil {
				return err
			}
		}
	}
	return &ExpectExhaustedError{Description: a.Description, Attempts: attempts, LastResponse: lastText}
}

func (e *Engine) runClick(ctx context.Context, ectx *ExecutionContext, target string, click func(context.Context, int, int) error, kind string) error {
	e.logAction(kind, map[string]any{"target": target})

	x, y, err := e.locate(ctx, ectx, target, protocol.LocatePrompt(target))
	if err != nil {
		return err
	}
	if err := click(ctx, x, y); err != nil {
		return err
	}
	return sleepCtx(ctx, e.opts.PostClickDelay)
}

func (e *Engine) runType(ctx context.Context, ectx *ExecutionContext, a mbl.TypeAction) error {
	value, err := e.resolveValue(ectx, a.Value, a.IsParam)
	if err != nil {
		return err
	}
	e.logAction("type", map[string]any{"target": a.Target, "append": a.Append})

	x, y, err := e.locate(ctx, ectx, a.Target, protocol.LocatePrompt(a.Target))
	if err != nil {
		return err
	}
	if err := e.remote.Click(ctx, x, y); err != nil {
		return err
	}
	if err := sleepCtx(ctx, e.opts.PostClickDelay); err != nil {
		return err
	}

	if !a.Append {
		if err := e.remote.SendKeyCombo(ctx, "Ctrl+A"); err != nil {
			return err
		}
		if err := e.remote.SendKeyCombo(ctx, "Delete"); err != nil {
			return err
		}
	}
	if err := e.remote.SendKeys(ctx, value); err != nil {
		return err
	}
	return sleepCtx(ctx, e.opts.PostActionDelay)
}

func (e *Engine) runSelect(ctx context.Context, ectx *ExecutionContext, a mbl.SelectAction) error {
	value, err := e.resolveValue(ectx, a.Value, a.IsParam)
	if err != nil {
		return err
	}
	e.logAction("select", map[string]any{"target": a.Target})

	// Open the dropdown.
	x, y, err := e.locate(ctx, ectx, a.Target, protocol.LocatePrompt(a.Target))
	if err != nil {
		return err
	}
	if err := e.remote.Click(ctx, x, y); err != nil {
		return err
	}
	if err := sleepCtx(ctx, e.opts.PostClickDelay+selectOpenDelay); err != nil {
		return err
	}

	// Pick the option from the open list.
	x, y, err = e.locate(ctx, ectx, value, protocol.SelectOptionPrompt(value, a.Target))
	if err != nil {
		return err
	}
	if err := e.remote.Click(ctx, x, y); err != nil {
		return err
	}
	return sleepCtx(ctx, e.opts.PostClickDelay)
}

func (e *Engine) runExtract(ctx context.Context, ectx *ExecutionContext, a mbl.ExtractAction) error {
	e.logAction("extract", map[string]any{"variable": a.Variable, "source": a.Source})

	png, err := e.capture(ctx, ectx, "extract")
	if err != nil {
		return err
	}
	text, err := e.callModel(ctx, ectx, png, protocol.ExtractPrompt(a.Source), "extract")
	if err != nil {
		return err
	}

	parsed := protocol.ParseExtract(text)
	if !parsed.Found {
		return &ElementNotFoundError{Target: a.Source, Detail: "could not read value"}
	}
	if parsed.Empty {
		ectx.ExtractedValues[a.Variable] = ""
	} else {
		ectx.ExtractedValues[a.Variable] = parsed.Value
	}
	return nil
}

func (e *Engine) runIf(ctx context.Context, ectx *ExecutionContext, a mbl.IfScreenShowsAction) error {
	e.logAction("if_screen_shows", map[string]any{"condition": a.Condition})

	png, err := e.capture(ctx, ectx, "condition")
	if err != nil {
		return err
	}
	text, err := e.callModel(ctx, ectx, png, protocol.ConditionPrompt(a.Condition), "condition")
	if err != nil {
		return err
	}

	if protocol.ParseBoolean(text) {
		return e.runActions(ctx, ectx, a.Then)
	}
	return e.runActions(ctx, ectx, a.Else)
}

// resolveValue substitutes a type/select value: literals pass through,
// parameter references resolve against parameters first, then extracted
// values.
func (e *Engine) resolveValue(ectx *ExecutionContext, value string, isParam bool) (string, error) {
	if !isParam {
		return value, nil
	}
	v, ok := ectx.ResolveValue(value)
	if !ok {
		return "", &MissingInputError{Name: value}
	}
	return v, nil
}

// locate captures the screen, asks the model for coordinates, and parses
// the reply.
func (e *Engine) locate(ctx context.Context, ectx *ExecutionContext, target, prompt string) (int, int, error) {
	png, err := e.capture(ctx, ectx, "locate")
	if err != nil {
		return 0, 0, err
	}
	text, err := e.callModel(ctx, ectx, png, prompt, "locate")
	if err != nil {
		return 0, 0, err
	}

	coord := protocol.ParseCoordinate(text)
	if !coord.Found {
		return 0, 0, &ElementNotFoundError{Target: target, Detail: coord.Detail}
	}
	return coord.X, coord.Y, nil
}

// capture grabs a screenshot and archives it. Archival is best-effort;
// the raw bytes are always returned for the model call.
func (e *Engine) capture(ctx context.Context, ectx *ExecutionContext, prefix string) ([]byte, error) {
	png, err := e.remote.CaptureScreenshot(ctx)
	if err != nil {
		return nil, err
	}
	path, err := e.log.SaveScreenshot(png, prefix)
	if err != nil {
		slog.Warn("failed to save screenshot", "error", err)
	} else {
		ectx.AddScreenshot(path)
	}
	return png, nil
}

func (e *Engine) callModel(ctx context.Context, ectx *ExecutionContext, png []byte, prompt, purpose string) (string, error) {
	reply, err := e.model.Send(ctx, png, prompt)
	if err != nil {
		return "", err
	}
	ectx.TotalTokensUsed += reply.InputTokens + reply.OutputTokens
	e.logEvent(tasklog.EventModelCall, tasklog.ModelCallData(purpose, reply.Text, reply.InputTokens, reply.OutputTokens, reply.Duration.Milliseconds()))
	return reply.Text, nil
}

func (e *Engine) logAction(kind string, detail map[string]any) {
	e.logEvent(tasklog.EventAction, tasklog.ActionData(kind, detail))
}

func (e *Engine) logEvent(t tasklog.EventType, data map[string]any) {
	if err := e.log.Log(tasklog.NewEvent(t, data)); err != nil {
		slog.Debug("task log write failed", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

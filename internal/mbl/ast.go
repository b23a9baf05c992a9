// Package mbl implements the MBL task language: a lexer, a recursive-descent
// parser, and a semantic validator for screen-automation task scripts.
package mbl

// TaskDefinition is the parsed form of one MBL task file.
type TaskDefinition struct {
	Name      string
	FileName  string
	Inputs    []string
	Steps     []Step
	OnTimeout *ErrorHandler
	OnError   *ErrorHandler
}

// Step is a named group of actions with an optional per-step timeout.
type Step struct {
	Description    string
	TimeoutSeconds int // 0 means the engine default applies
	Actions        []Action
}

// ErrorHandler holds the actions of an "on timeout" or "on error" block.
type ErrorHandler struct {
	Actions []Action
}

// Action is a closed tagged variant: exactly the concrete types below
// implement it. Dispatch is by exhaustive type switch so that adding an
// action kind is a compile-time-visible change.
type Action interface {
	isAction()
}

// ExpectAction polls the screen until a description matches or retries
// are exhausted.
type ExpectAction struct {
	Description string
}

// ClickAction single-clicks the element described by Target.
type ClickAction struct {
	Target string
}

// DoubleClickAction double-clicks the element described by Target.
type DoubleClickAction struct {
	Target string
}

// RightClickAction right-clicks the element described by Target.
type RightClickAction struct {
	Target string
}

// TypeAction types a value into the element described by Target.
// IsParam marks Value as a parameter or extracted-variable reference
// rather than a literal. Append skips clearing the field first.
type TypeAction struct {
	Value   string
	IsParam bool
	Target  string
	Append  bool
}

// SelectAction picks Value from the dropdown described by Target.
type SelectAction struct {
	Value   string
	IsParam bool
	Target  string
}

// KeyAction sends a key combination, e.g. "Ctrl+S" or "Enter".
type KeyAction struct {
	Combo string
}

// ExtractAction reads the on-screen value described by Source into the
// named variable.
type ExtractAction struct {
	Variable string
	Source   string
}

// OutputAction declares an extracted variable as a task output.
type OutputAction struct {
	Variable string
}

// ScreenshotAction captures and archives a screenshot.
type ScreenshotAction struct{}

// AbortAction stops the task with a message.
type AbortAction struct {
	Message string
}

// IfScreenShowsAction branches on whether the screen shows Condition.
// Then and Else must not contain another IfScreenShowsAction.
type IfScreenShowsAction struct {
	Condition string
	Then      []Action
	Else      []Action
}

func (ExpectAction) isAction()        {}
func (ClickAction) isAction()         {}
func (DoubleClickAction) isAction()   {}
func (RightClickAction) isAction()    {}
func (TypeAction) isAction()          {}
func (SelectAction) isAction()        {}
func (KeyAction) isAction()           {}
func (ExtractAction) isAction()       {}
func (OutputAction) isAction()        {}
func (ScreenshotAction) isAction()    {}
func (AbortAction) isAction()         {}
func (IfScreenShowsAction) isAction() {}

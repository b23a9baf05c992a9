package mbl

import "fmt"

// Validate runs the static checks over a parsed task and returns
// human-readable error messages in document order. An empty slice means
// the task is ready for execution.
func Validate(task *TaskDefinition) []string {
	v := &validator{
		inputs: map[string]bool{},
	}
	for _, in := range task.Inputs {
		v.inputs[in] = true
	}

	if len(task.Steps) == 0 {
		v.errs = append(v.errs, "task must contain at least one step")
	}

	extracted := map[string]bool{}
	for _, step := range task.Steps {
		v.visit(step.Actions, extracted, false)
	}

	// Handlers see the variables extracted by the main body; extracts inside
	// a handler are visible only to that handler's later actions.
	for _, handler := range []*ErrorHandler{task.OnTimeout, task.OnError} {
		if handler == nil {
			continue
		}
		v.visit(handler.Actions, copySet(extracted), false)
	}

	return v.errs
}

type validator struct {
	inputs map[string]bool
	errs   []string
}

// visit walks actions in document order, growing the extracted set as it
// goes. Both branches of an if are entered; their extracts remain visible
// to everything after the block, since only one branch runs and output
// tolerates absent variables at runtime.
func (v *validator) visit(actions []Action, extracted map[string]bool, insideIf bool) {
	for _, action := range actions {
		switch a := action.(type) {
		case ExtractAction:
			extracted[a.Variable] = true
		case OutputAction:
			if !extracted[a.Variable] {
				v.errs = append(v.errs, fmt.Sprintf("output %q has no preceding extract", a.Variable))
			}
		case TypeAction:
			v.checkParam(a.IsParam, a.Value)
		case SelectAction:
			v.checkParam(a.IsParam, a.Value)
		case IfScreenShowsAction:
			if insideIf {
				v.errs = append(v.errs, fmt.Sprintf("nested \"if screen shows\" is not allowed (condition %q)", a.Condition))
			}
			v.visit(a.Then, extracted, true)
			v.visit(a.Else, extracted, true)
		case ExpectAction, ClickAction, DoubleClickAction, RightClickAction,
			KeyAction, ScreenshotAction, AbortAction:
			// No static constraints.
		}
	}
}

func (v *validator) checkParam(isParam bool, name string) {
	if isParam && !v.inputs[name] {
		v.errs = append(v.errs, fmt.Sprintf("parameter %q is not declared as an input", name))
	}
}

func copySet(src map[string]bool) map[string]bool {
	dst := make(map[string]bool, len(src))
	for k := range src {
		dst[k] = true
	}
	return dst
}

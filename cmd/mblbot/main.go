package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess    = 0 // Task completed successfully
	ExitTaskFailed = 1 // Task executed but failed
	ExitError      = 2 // Configuration or runtime error
)

// TaskFailureError indicates that a task executed to completion of the
// engine's control flow but did not succeed.
type TaskFailureError struct {
	Message string
}

func (e *TaskFailureError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var taskFailure *TaskFailureError
		if errors.As(err, &taskFailure) {
			os.Exit(ExitTaskFailed)
		}

		os.Exit(ExitError)
	}
}

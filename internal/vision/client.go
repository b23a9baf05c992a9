// Package vision provides the client contract for the vision-language
// model that reads remote-desktop screenshots, plus an HTTPS
// implementation against a messages-style API.
package vision

import (
	"context"
	"fmt"
	"time"
)

// Reply is one model response with its token accounting.
type Reply struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Model        string
	Duration     time.Duration
}

// Client sends a screenshot and a prompt to the vision model.
type Client interface {
	Send(ctx context.Context, png []byte, prompt string) (*Reply, error)
}

// ModelError is a failure from the vision model API: a non-2xx status, a
// transport error, or an unusable response body. Retryable failures come
// back as a ModelError once the retries are used up.
type ModelError struct {
	StatusCode int
	Message    string
}

func (e *ModelError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("vision model error (status %d): %s", e.StatusCode, e.Message)
	}
	return "vision model error: " + e.Message
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mblbot/mblbot/internal/remote"
	"github.com/mblbot/mblbot/internal/vision"
)

// scriptedModel replays a fixed sequence of replies and records every
// prompt it was asked.
type scriptedModel struct {
	replies []string
	prompts []string

	inputTokens  int
	outputTokens int
}

func newScriptedModel(replies ...string) *scriptedModel {
	return &scriptedModel{replies: replies, inputTokens: 10, outputTokens: 5}
}

func (m *scriptedModel) Send(ctx context.Context, png []byte, prompt string) (*vision.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.prompts = append(m.prompts, prompt)
	if len(m.replies) == 0 {
		return nil, errors.New("scripted model ran out of replies")
	}
	text := m.replies[0]
	m.replies = m.replies[1:]
	return &vision.Reply{
		Text:         text,
		InputTokens:  m.inputTokens,
		OutputTokens: m.outputTokens,
		Model:        "mock",
	}, nil
}

// repeatingModel answers every call with the same text.
type repeatingModel struct {
	text  string
	calls int
}

func (m *repeatingModel) Send(ctx context.Context, png []byte, prompt string) (*vision.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.calls++
	return &vision.Reply{Text: m.text, InputTokens: 10, OutputTokens: 5}, nil
}

// failingModel fails every call with the given error.
type failingModel struct {
	err error
}

func (m *failingModel) Send(ctx context.Context, png []byte, prompt string) (*vision.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, m.err
}

// mockController records device calls as readable strings, e.g.
// "click(400,300)" or "keycombo(Ctrl+A)".
type mockController struct {
	ops []string

	// captureDelay makes screenshots block, for timeout tests.
	captureDelay time.Duration

	// captureGate, when set, blocks screenshots until the channel closes.
	captureGate chan struct{}

	connected bool
}

func (c *mockController) Connect(ctx context.Context) error    { c.connected = true; return nil }
func (c *mockController) Disconnect(ctx context.Context) error { c.connected = false; return nil }
func (c *mockController) IsConnected() bool                    { return c.connected }

func (c *mockController) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	if c.captureGate != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.captureGate:
		}
	}
	if c.captureDelay > 0 {
		timer := time.NewTimer(c.captureDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	c.ops = append(c.ops, "screenshot")
	return []byte("png"), nil
}

func (c *mockController) Click(ctx context.Context, x, y int) error {
	c.ops = append(c.ops, fmt.Sprintf("click(%d,%d)", x, y))
	return nil
}

func (c *mockController) DoubleClick(ctx context.Context, x, y int) error {
	c.ops = append(c.ops, fmt.Sprintf("doubleclick(%d,%d)", x, y))
	return nil
}

func (c *mockController) RightClick(ctx context.Context, x, y int) error {
	c.ops = append(c.ops, fmt.Sprintf("rightclick(%d,%d)", x, y))
	return nil
}

func (c *mockController) SendKeys(ctx context.Context, text string) error {
	c.ops = append(c.ops, fmt.Sprintf("keys(%s)", text))
	return nil
}

func (c *mockController) SendKeyCombo(ctx context.Context, combo string) error {
	c.ops = append(c.ops, fmt.Sprintf("keycombo(%s)", combo))
	return nil
}

func (c *mockController) countOps(name string) int {
	n := 0
	for _, op := range c.ops {
		if op == name {
			n++
		}
	}
	return n
}

var (
	_ remote.Controller = (*mockController)(nil)
	_ vision.Client     = (*scriptedModel)(nil)
	_ vision.Client     = (*repeatingModel)(nil)
	_ vision.Client     = (*failingModel)(nil)
)

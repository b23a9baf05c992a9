// Package remote defines the remote-desktop controller contract consumed
// by the execution engine, plus a TCP client implementation that drives a
// desktop-side agent.
package remote

import (
	"context"
	"fmt"
)

// Controller captures screenshots and injects mouse/keyboard input on the
// automated machine. Every operation honours its context.
type Controller interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	CaptureScreenshot(ctx context.Context) ([]byte, error)

	Click(ctx context.Context, x, y int) error
	DoubleClick(ctx context.Context, x, y int) error
	RightClick(ctx context.Context, x, y int) error

	SendKeys(ctx context.Context, text string) error
	SendKeyCombo(ctx context.Context, combo string) error
}

// DeviceError is a failure from the remote-desktop controller.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("remote desktop %s failed: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

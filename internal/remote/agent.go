package remote

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// AgentConfig configures the connection to the desktop-side agent.
type AgentConfig struct {
	Host string
	Port int

	// TypingDelay paces SendKeys, one keystroke per rune.
	TypingDelay time.Duration

	// DialTimeout bounds Connect. Zero means the dialer default.
	DialTimeout time.Duration
}

// agentRequest is one newline-delimited JSON command to the agent.
type agentRequest struct {
	Op    string `json:"op"`
	X     int    `json:"x,omitempty"`
	Y     int    `json:"y,omitempty"`
	Text  string `json:"text,omitempty"`
	Combo string `json:"combo,omitempty"`
}

// agentResponse is the agent's newline-delimited JSON reply.
type agentResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  string `json:"data,omitempty"` // base64 PNG for screenshots
}

// AgentController drives the remote desktop through a companion agent
// process speaking newline-delimited JSON over TCP. Requests are strictly
// serialised: the engine never re-enters the controller.
type AgentController struct {
	cfg AgentConfig

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// NewAgentController creates a controller for the given agent address.
func NewAgentController(cfg AgentConfig) *AgentController {
	return &AgentController{cfg: cfg}
}

// Connect dials the agent. Connecting twice is a no-op.
func (c *AgentController) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &DeviceError{Op: "connect", Err: err}
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// Disconnect closes the agent connection.
func (c *AgentController) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	if err != nil {
		return &DeviceError{Op: "disconnect", Err: err}
	}
	return nil
}

// IsConnected reports whether the agent connection is open.
func (c *AgentController) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// CaptureScreenshot returns the current screen as PNG bytes.
func (c *AgentController) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	resp, err := c.roundTrip(ctx, agentRequest{Op: "screenshot"})
	if err != nil {
		return nil, err
	}
	png, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return nil, &DeviceError{Op: "screenshot", Err: fmt.Errorf("invalid image payload: %w", err)}
	}
	return png, nil
}

func (c *AgentController) Click(ctx context.Context, x, y int) error {
	_, err := c.roundTrip(ctx, agentRequest{Op: "click", X: x, Y: y})
	return err
}

func (c *AgentController) DoubleClick(ctx context.Context, x, y int) error {
	_, err := c.roundTrip(ctx, agentRequest{Op: "double_click", X: x, Y: y})
	return err
}

func (c *AgentController) RightClick(ctx context.Context, x, y int) error {
	_, err := c.roundTrip(ctx, agentRequest{Op: "right_click", X: x, Y: y})
	return err
}

// SendKeys types text one rune at a time, pacing keystrokes by the
// configured typing delay.
func (c *AgentController) SendKeys(ctx context.Context, text string) error {
	for i, r := range text {
		if i > 0 && c.cfg.TypingDelay > 0 {
			timer := time.NewTimer(c.cfg.TypingDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if _, err := c.roundTrip(ctx, agentRequest{Op: "key_press", Text: string(r)}); err != nil {
			return err
		}
	}
	return nil
}

func (c *AgentController) SendKeyCombo(ctx context.Context, combo string) error {
	_, err := c.roundTrip(ctx, agentRequest{Op: "key_combo", Combo: combo})
	return err
}

// roundTrip writes one request line and reads one response line. The
// context deadline is pushed down to the socket so a call whose deadline
// passes unblocks the read; a cancellation before the deadline does not
// interrupt a read already in progress.
func (c *AgentController) roundTrip(ctx context.Context, req agentRequest) (*agentResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, &DeviceError{Op: req.Op, Err: fmt.Errorf("not connected")}
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, &DeviceError{Op: req.Op, Err: err}
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, &DeviceError{Op: req.Op, Err: err}
	}
	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return nil, c.wrapIO(ctx, req.Op, err)
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, c.wrapIO(ctx, req.Op, err)
	}

	var resp agentResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, &DeviceError{Op: req.Op, Err: fmt.Errorf("invalid response: %w", err)}
	}
	if !resp.OK {
		return nil, &DeviceError{Op: req.Op, Err: fmt.Errorf("%s", resp.Error)}
	}
	return &resp, nil
}

// wrapIO converts socket failures caused by context expiry back into the
// context's own error so cancellation classifies correctly upstream.
func (c *AgentController) wrapIO(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &DeviceError{Op: op, Err: err}
}

var _ Controller = (*AgentController)(nil)

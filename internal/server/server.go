// Package server exposes the engine over a TCP control socket speaking
// newline-delimited JSON: run, status, list_tasks, screenshot, reconnect,
// shutdown. One task runs at a time; a second run request is rejected
// while one is in flight.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"golang.org/x/sync/errgroup"

	"github.com/mblbot/mblbot/internal/engine"
	"github.com/mblbot/mblbot/internal/mbl"
	"github.com/mblbot/mblbot/internal/remote"
	"github.com/mblbot/mblbot/internal/tasklog"
)

// ErrBusy is returned for a run request while another task is executing.
var ErrBusy = errors.New("a task is already running")

// Server handles control connections for one engine instance.
type Server struct {
	engine     *engine.Engine
	controller remote.Controller
	logger     tasklog.Logger
	tasksDir   string

	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a control server.
func New(eng *engine.Engine, controller remote.Controller, logger tasklog.Logger, tasksDir string) *Server {
	if logger == nil {
		logger = tasklog.NopLogger{}
	}
	return &Server{
		engine:     eng,
		controller: controller,
		logger:     logger,
		tasksDir:   tasksDir,
	}
}

// Listen binds the control socket without serving yet.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln
	return nil
}

// ListenAndServe accepts control connections until the context is
// cancelled or a shutdown request arrives.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts connections on the bound listener.
func (s *Server) Serve(ctx context.Context) error {
	ln := s.listener

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	go func() {
		<-ctx.Done()
		ln.Close() //nolint:errcheck
	}()

	slog.Info("control server listening", "address", ln.Addr())

	g, ctx := errgroup.WithContext(ctx)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
		g.Go(func() error {
			defer conn.Close() //nolint:errcheck
			// Unblock pending reads when the server shuts down.
			stop := context.AfterFunc(ctx, func() { conn.Close() }) //nolint:errcheck
			defer stop()
			s.serveConn(ctx, conn)
			return nil
		})
	}
	return g.Wait()
}

// Addr returns the listener's address, for tests that bind port 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	transport := NewTransport(conn, conn)
	for {
		req, err := transport.ReadRequest()
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				slog.Debug("control connection read failed", "error", err)
			}
			return
		}

		resp := s.handle(ctx, req)
		if err := transport.WriteResponse(resp); err != nil {
			slog.Debug("control connection write failed", "error", err)
			return
		}

		if req.Action == "shutdown" {
			return
		}
	}
}

func (s *Server) handle(ctx context.Context, req *Request) *Response {
	switch req.Action {
	case "run":
		return s.handleRun(ctx, req)
	case "status":
		return &Response{OK: true, Result: map[string]any{
			"running": s.engine.IsRunning(),
			"task":    s.engine.CurrentTaskName(),
			"step":    s.engine.CurrentStepName(),
		}}
	case "list_tasks":
		return s.handleListTasks()
	case "screenshot":
		return s.handleScreenshot(ctx)
	case "reconnect":
		return s.handleReconnect(ctx)
	case "shutdown":
		if s.cancel != nil {
			s.cancel()
		}
		return &Response{OK: true, Result: "shutting down"}
	default:
		return &Response{Error: fmt.Sprintf("unknown action %q", req.Action)}
	}
}

func (s *Server) handleRun(ctx context.Context, req *Request) *Response {
	if req.Task == "" {
		return &Response{Error: "run requires a task"}
	}
	if s.engine.IsRunning() {
		return &Response{Error: ErrBusy.Error()}
	}

	params, err := decodeParams(req.Params)
	if err != nil {
		return &Response{Error: "invalid params: " + err.Error()}
	}

	task, err := s.loadTask(req.Task)
	if err != nil {
		return &Response{Error: err.Error()}
	}
	if errs := mbl.Validate(task); len(errs) > 0 {
		return &Response{Error: "task validation failed: " + strings.Join(errs, "; ")}
	}

	result := s.engine.Execute(ctx, task, params)
	return &Response{OK: result.Success, Error: result.Error, Result: result}
}

func (s *Server) handleListTasks() *Response {
	pattern := filepath.Join(s.tasksDir, "*.mbl")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return &Response{Error: err.Error()}
	}
	sort.Strings(matches)

	type taskInfo struct {
		Name   string   `json:"name"`
		File   string   `json:"file"`
		Inputs []string `json:"inputs,omitempty"`
	}
	var tasks []taskInfo
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		task, err := mbl.Parse(string(data), filepath.Base(path))
		if err != nil {
			slog.Debug("skipping unparsable task", "file", path, "error", err)
			continue
		}
		tasks = append(tasks, taskInfo{Name: task.Name, File: filepath.Base(path), Inputs: task.Inputs})
	}
	return &Response{OK: true, Result: tasks}
}

func (s *Server) handleScreenshot(ctx context.Context) *Response {
	png, err := s.controller.CaptureScreenshot(ctx)
	if err != nil {
		return &Response{Error: err.Error()}
	}
	path, err := s.logger.SaveScreenshot(png, "manual")
	if err != nil {
		return &Response{Error: err.Error()}
	}
	return &Response{OK: true, Result: map[string]string{"path": path}}
}

func (s *Server) handleReconnect(ctx context.Context) *Response {
	if err := s.controller.Disconnect(ctx); err != nil {
		slog.Warn("disconnect before reconnect failed", "error", err)
	}
	if err := s.controller.Connect(ctx); err != nil {
		return &Response{Error: err.Error()}
	}
	return &Response{OK: true, Result: "reconnected"}
}

// loadTask resolves a run request's task: an explicit path, or a name
// looked up in the tasks directory.
func (s *Server) loadTask(name string) (*mbl.TaskDefinition, error) {
	path := name
	if _, err := os.Stat(path); err != nil {
		candidate := filepath.Join(s.tasksDir, name)
		if !strings.HasSuffix(candidate, ".mbl") {
			candidate += ".mbl"
		}
		path = candidate
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("task %q not found", name)
	}
	return mbl.Parse(string(data), filepath.Base(path))
}

// decodeParams coerces the request's params map into string bindings.
func decodeParams(raw map[string]any) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var params map[string]string
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &params,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, err
	}
	return params, nil
}

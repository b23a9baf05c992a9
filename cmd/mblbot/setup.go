package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mblbot/mblbot/internal/config"
	"github.com/mblbot/mblbot/internal/engine"
	"github.com/mblbot/mblbot/internal/protocol"
	"github.com/mblbot/mblbot/internal/remote"
	"github.com/mblbot/mblbot/internal/tasklog"
	"github.com/mblbot/mblbot/internal/vision"
)

// loadConfig reads the --config flag, falling back to defaults when the
// flag is unset.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// buildStack wires the collaborators for one engine instance from config.
func buildStack(cfg *config.Config) (*engine.Engine, *remote.AgentController, *tasklog.FileLogger, error) {
	logger, err := tasklog.NewFileLogger(cfg.Logging.LogDir, cfg.Logging.ScreenshotDir)
	if err != nil {
		return nil, nil, nil, err
	}

	controller := remote.NewAgentController(remote.AgentConfig{
		Host:        cfg.Remote.Host,
		Port:        cfg.Remote.Port,
		TypingDelay: time.Duration(cfg.Engine.TypingDelayMs) * time.Millisecond,
	})

	model := vision.NewHTTPClient(vision.HTTPClientOptions{
		Endpoint:     cfg.Vision.Endpoint,
		APIKey:       cfg.APIKey(),
		Model:        cfg.Vision.Model,
		MaxTokens:    cfg.Vision.MaxTokens,
		SystemPrompt: protocol.SystemPrompt(cfg.Remote.Width, cfg.Remote.Height),
		MaxRetries:   cfg.Vision.MaxRetries,
		Timeout:      time.Duration(cfg.Vision.TimeoutSec) * time.Second,
	})

	eng := engine.New(controller, model, logger, engine.Options{
		DefaultStepTimeout:   time.Duration(cfg.Engine.DefaultExpectTimeoutSeconds) * time.Second,
		ExpectRetryIntervals: cfg.RetryIntervals(),
		PostActionDelay:      time.Duration(cfg.Engine.PostActionDelayMs) * time.Millisecond,
		PostClickDelay:       time.Duration(cfg.Engine.PostClickDelayMs) * time.Millisecond,
	})

	return eng, controller, logger, nil
}

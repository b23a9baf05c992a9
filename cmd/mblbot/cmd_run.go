package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mblbot/mblbot/internal/mbl"
)

func newRunCommand() *cobra.Command {
	var paramFlags []string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "run <task.mbl>",
		Short: "Execute an MBL task against the remote desktop",
		Long: `Execute an MBL task against the remote desktop.

The task file is parsed and validated before anything touches the remote
machine. Parameters declared with "input" are supplied via --param.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommandE(cmd, args[0], paramFlags, outputPath)
		},
	}

	cmd.Flags().StringArrayVarP(&paramFlags, "param", "p", nil, "Task parameter as name=value (can be repeated)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON file for the execution result")

	return cmd
}

func runCommandE(cmd *cobra.Command, taskPath string, paramFlags []string, outputPath string) error {
	data, err := os.ReadFile(taskPath)
	if err != nil {
		return fmt.Errorf("failed to read task: %w", err)
	}

	task, err := mbl.Parse(string(data), filepath.Base(taskPath))
	if err != nil {
		return fmt.Errorf("failed to parse task: %w", err)
	}
	if errs := mbl.Validate(task); len(errs) > 0 {
		return fmt.Errorf("task validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	params, err := parseParams(paramFlags)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	eng, controller, logger, err := buildStack(cfg)
	if err != nil {
		return err
	}
	defer logger.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := controller.Connect(ctx); err != nil {
		return err
	}
	defer controller.Disconnect(context.Background()) //nolint:errcheck

	result := eng.Execute(ctx, task, params)

	printResult(cmd.OutOrStdout(), task, result)

	if outputPath != "" {
		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(outputPath, encoded, 0o644); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}

	if !result.Success {
		return &TaskFailureError{Message: "task failed: " + result.Error}
	}
	return nil
}

// parseParams turns repeated name=value flags into parameter bindings.
func parseParams(flags []string) (map[string]string, error) {
	params := map[string]string{}
	for _, f := range flags {
		name, value, ok := strings.Cut(f, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q, expected name=value", f)
		}
		params[name] = value
	}
	return params, nil
}

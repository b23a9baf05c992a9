package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mblbot",
		Short: "mblbot - vision-driven automation of remote Windows applications",
		Long: `mblbot automates a legacy Windows application over a remote desktop
session. Tasks are written in the MBL language; at each step the engine
captures a screenshot, asks a vision model about the screen, and turns
the answer into mouse and keyboard events.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("config", "", "Path to config file (default: built-in defaults)")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newTasksCommand())
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newScreenshotCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}

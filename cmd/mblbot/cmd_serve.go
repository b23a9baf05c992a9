package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mblbot/mblbot/internal/server"
)

func newServeCommand() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the TCP control server",
		Long: `Start the TCP control server.

Clients send newline-delimited JSON requests of the form
{"action": ..., "task": ..., "params": ...} with actions:
  run         Execute a task (one at a time; concurrent runs are rejected)
  status      Report whether a task is running and which step it is on
  list_tasks  List the tasks in the configured tasks directory
  screenshot  Capture and archive one screenshot
  reconnect   Re-establish the remote desktop connection
  shutdown    Stop the server`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if listenAddr == "" {
				listenAddr = cfg.Server.ListenAddr
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

			srv := server.New(eng, controller, logger, cfg.Server.TasksDir)
			return srv.ListenAndServe(ctx, listenAddr)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "TCP address to listen on (default from config)")

	return cmd
}

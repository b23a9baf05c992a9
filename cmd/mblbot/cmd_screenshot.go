package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newScreenshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screenshot",
		Short: "Capture one screenshot of the remote desktop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			_, controller, logger, err := buildStack(cfg)
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

			png, err := controller.CaptureScreenshot(ctx)
			if err != nil {
				return err
			}
			path, err := logger.SaveScreenshot(png, "manual")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	return cmd
}

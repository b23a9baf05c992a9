package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mblbot/mblbot/internal/mbl"
)

func newTasksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks [dir]",
		Short: "List the MBL tasks in a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			} else {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				dir = cfg.Server.TasksDir
			}
			return tasksCommandE(cmd, dir)
		},
	}
	return cmd
}

func tasksCommandE(cmd *cobra.Command, dir string) error {
	files, err := collectTaskFiles(dir)
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		task, err := mbl.Parse(string(data), filepath.Base(file))
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%-30s  (parse error: %v)\n", filepath.Base(file), err)
			continue
		}
		inputs := ""
		if len(task.Inputs) > 0 {
			inputs = "  inputs: " + strings.Join(task.Inputs, ", ")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-30s  %q%s\n", filepath.Base(file), task.Name, inputs)
	}
	return nil
}

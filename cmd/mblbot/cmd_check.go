package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mblbot/mblbot/internal/mbl"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <task.mbl | dir>",
		Short: "Parse and validate MBL task files without executing them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkCommandE(cmd, args[0])
		},
	}
	return cmd
}

func checkCommandE(cmd *cobra.Command, path string) error {
	files, err := collectTaskFiles(path)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .mbl files found at %s", path)
	}

	failed := 0
	for _, file := range files {
		errs := checkFile(file)
		if len(errs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", file)
			continue
		}
		failed++
		fmt.Fprintf(cmd.OutOrStdout(), "✗ %s\n", file)
		for _, e := range errs {
			fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", e)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d task file(s) failed validation", failed, len(files))
	}
	return nil
}

func checkFile(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return []string{err.Error()}
	}
	task, err := mbl.Parse(string(data), filepath.Base(path))
	if err != nil {
		return []string{err.Error()}
	}
	return mbl.Validate(task)
}

// collectTaskFiles expands a file or directory argument into a sorted
// list of .mbl files.
func collectTaskFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := filepath.Glob(filepath.Join(path, "*.mbl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

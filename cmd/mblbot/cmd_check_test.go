package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTask(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func runCheck(t *testing.T, arg string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"check", arg})
	err := cmd.Execute()
	return out.String(), err
}

func TestCheckCommand_ValidFile(t *testing.T) {
	path := writeTask(t, t.TempDir(), "ok.mbl", "task \"T\"\nstep \"s\"\n click \"OK\"\n")

	out, err := runCheck(t, path)
	require.NoError(t, err)
	require.Contains(t, out, "✓")
	require.Contains(t, out, "ok.mbl")
}

func TestCheckCommand_InvalidFile(t *testing.T) {
	path := writeTask(t, t.TempDir(), "bad.mbl", "task \"T\"\nstep \"s\"\n output ghost\n")

	out, err := runCheck(t, path)
	require.Error(t, err)
	require.Contains(t, out, "✗")
	require.Contains(t, out, "ghost")
}

func TestCheckCommand_Directory(t *testing.T) {
	dir := t.TempDir()
	writeTask(t, dir, "a.mbl", "task \"A\"\nstep \"s\"\n click \"OK\"\n")
	writeTask(t, dir, "b.mbl", "task \"B\"\nstep \"s\"\n click \"OK\"\n")

	out, err := runCheck(t, dir)
	require.NoError(t, err)
	require.Contains(t, out, "a.mbl")
	require.Contains(t, out, "b.mbl")
}

func TestCheckCommand_EmptyDirectory(t *testing.T) {
	_, err := runCheck(t, t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "no .mbl files")
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"name=Ada", "note=a=b"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"name": "Ada", "note": "a=b"}, params)

	t.Run("missing equals", func(t *testing.T) {
		_, err := parseParams([]string{"nameAda"})
		require.Error(t, err)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := parseParams([]string{"=x"})
		require.Error(t, err)
	})
}

package tasklog

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// Archive gzip-compresses a finished task log in place: the .jsonl file is
// replaced by a .jsonl.gz next to it. Returns the archive path.
func Archive(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening log for archive: %w", err)
	}
	defer src.Close() //nolint:errcheck

	archivePath := path + ".gz"
	dst, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("creating archive: %w", err)
	}

	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		dst.Close()          //nolint:errcheck
		os.Remove(archivePath) //nolint:errcheck
		return "", fmt.Errorf("compressing log: %w", err)
	}
	if err := zw.Close(); err != nil {
		dst.Close() //nolint:errcheck
		return "", fmt.Errorf("finalizing archive: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", err
	}

	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("removing archived log: %w", err)
	}
	return archivePath, nil
}

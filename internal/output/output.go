// Package output writes generated manifests and subtitle files.
// Writes are atomic (temp file + rename), so a reader never sees a
// partially written file.
package output

import (
	"bufio"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"tuber/internal/httputil"
)

// Writer stores files inside one directory.
type Writer struct {
	fs  afero.Fs
	dir string
}

// NewWriter returns a Writer rooted at dir on fs. A nil fs means the OS
// filesystem.
func NewWriter(fs afero.Fs, dir string) *Writer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Writer{fs: fs, dir: dir}
}

// Write stores data as name inside the directory and returns the final
// path. The name is sanitized and can never escape the directory.
func (w *Writer) Write(name string, data []byte) (string, error) {
	path, err := httputil.SafeOutputPath(w.dir, name)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := w.fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	tmpFile, err := afero.TempFile(w.fs, dir, ".tuber-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	writer := bufio.NewWriter(tmpFile)
	if _, err := writer.Write(data); err != nil {
		tmpFile.Close()
		w.fs.Remove(tmpPath)
		return "", fmt.Errorf("writing %s: %w", name, err)
	}

	if err := writer.Flush(); err != nil {
		tmpFile.Close()
		w.fs.Remove(tmpPath)
		return "", fmt.Errorf("flushing %s: %w", name, err)
	}

	if err := tmpFile.Close(); err != nil {
		w.fs.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", err)
	}

	if err := w.fs.Rename(tmpPath, path); err != nil {
		w.fs.Remove(tmpPath)
		return "", fmt.Errorf("renaming %s: %w", name, err)
	}

	return path, nil
}

// Package filesystem writes rendered output files without leaving a
// half-written file behind when a run is interrupted.
package filesystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to a temporary file beside target, syncs it,
// then renames it over target. Readers see either the old file or the new
// one. When rename fails across devices it falls back to copy+sync.
func WriteFileAtomic(target string, data []byte, perm os.FileMode) error {
	w, err := NewAtomicWriter(target, perm)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Abort()
		return fmt.Errorf("writing temp file: %w", err)
	}
	return w.Close()
}

// AtomicWriter buffers output in a temporary file and publishes it to the
// target on Close. Abort discards it.
type AtomicWriter struct {
	target string
	perm   os.FileMode
	tmp    *os.File
	done   bool
}

var _ io.WriteCloser = (*AtomicWriter)(nil)

// NewAtomicWriter creates the temporary file, and the parent directory of
// target if needed.
func NewAtomicWriter(target string, perm os.FileMode) (*AtomicWriter, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: output directories are user-chosen
		return nil, fmt.Errorf("creating parent directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	return &AtomicWriter{target: target, perm: perm, tmp: tmp}, nil
}

func (w *AtomicWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, os.ErrClosed
	}
	return w.tmp.Write(p)
}

// Close syncs the temporary file and renames it over the target.
func (w *AtomicWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	tmpPath := w.tmp.Name()

	err := w.tmp.Sync()
	if err == nil {
		err = w.tmp.Chmod(w.perm)
	}
	if closeErr := w.tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("finishing temp file: %w", err)
	}

	if err := renameSafe(tmpPath, w.target); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp to target: %w", err)
	}
	return nil
}

// Abort removes the temporary file and leaves the target untouched.
func (w *AtomicWriter) Abort() {
	if w.done {
		return
	}
	w.done = true
	_ = w.tmp.Close()
	_ = os.Remove(w.tmp.Name())
}

// renameSafe attempts os.Rename first, then falls back to copy+delete.
func renameSafe(oldPath, newPath string) error {
	err := os.Rename(oldPath, newPath)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return err
	}
	if copyErr := copyFile(oldPath, newPath); copyErr != nil {
		return fmt.Errorf("copy fallback: %w (rename error: %w)", copyErr, err)
	}
	_ = os.Remove(oldPath)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: src is our own temp file
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()) //nolint:gosec // G304: dst is the requested output path
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	return out.Close()
}

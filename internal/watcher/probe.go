package watcher

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ProbeFSNotify reports whether fsnotify delivers events for dir. It
// creates and removes a hidden temporary file there and waits up to
// timeout for the Create event. Network and FUSE mounts commonly fail.
func ProbeFSNotify(dir string, timeout time.Duration) bool {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return false
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(dir); err != nil {
		return false
	}

	f, err := os.CreateTemp(dir, ".quarry_probe_*")
	if err != nil {
		return false
	}
	probeName := filepath.Base(f.Name())
	_ = f.Close()
	defer os.Remove(f.Name()) //nolint:errcheck

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return false
			}
			if ev.Has(fsnotify.Create) && filepath.Base(ev.Name) == probeName {
				return true
			}
		case <-w.Errors:
			return false
		case <-timer.C:
			return false
		}
	}
}

// Package watcher re-runs a query when the files it is built from change.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RunFunc executes one run of the watched query.
type RunFunc func(ctx context.Context) error

// Service watches a set of files and calls its RunFunc once per burst of
// changes. Runs never overlap: events arriving during a run are coalesced
// into the next one.
type Service struct {
	runFn        RunFunc
	files        map[string]struct{} // absolute paths
	logger       *slog.Logger
	debounce     time.Duration
	pollInterval time.Duration
	probeTimeout time.Duration

	mu    sync.Mutex
	stamp map[string]fileStamp
	runs  int
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

// NewService creates a watcher for files. The files must exist.
func NewService(runFn RunFunc, files []string, logger *slog.Logger) (*Service, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	s := &Service{
		runFn:        runFn,
		files:        make(map[string]struct{}, len(files)),
		logger:       logger.With(slog.String("component", "query-watcher")),
		debounce:     300 * time.Millisecond,
		pollInterval: 2 * time.Second,
		stamp:        make(map[string]fileStamp),
	}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", f, err)
		}
		st, err := statFile(abs)
		if err != nil {
			return nil, fmt.Errorf("watching %s: %w", f, err)
		}
		s.files[abs] = struct{}{}
		s.stamp[abs] = st
	}
	return s, nil
}

// SetDebounce overrides the quiet period that ends a burst of changes.
func (s *Service) SetDebounce(d time.Duration) { s.debounce = d }

// SetPollInterval sets how often files are stat'ed when fsnotify cannot be
// used for their directory.
func (s *Service) SetPollInterval(d time.Duration) { s.pollInterval = d }

// SetProbeTimeout enables a startup probe of each directory: directories
// where fsnotify delivers no event within d are polled instead. Zero skips
// the probe.
func (s *Service) SetProbeTimeout(d time.Duration) { s.probeTimeout = d }

// Runs returns how many runs have completed.
func (s *Service) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Start blocks until ctx is canceled.
func (s *Service) Start(ctx context.Context) error {
	dirs := make(map[string]struct{})
	for f := range s.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}

	poll := false
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("fsnotify unavailable, polling", slog.Any("error", err))
		poll = true
	} else {
		defer w.Close() //nolint:errcheck
		for dir := range dirs {
			if s.probeTimeout > 0 && !ProbeFSNotify(dir, s.probeTimeout) {
				s.logger.Warn("fsnotify probe failed, polling", slog.String("dir", dir))
				poll = true
				continue
			}
			// Editors often replace files by rename, so watch the directory.
			if err := w.Add(dir); err != nil {
				s.logger.Warn("cannot watch directory, polling", slog.String("dir", dir), slog.Any("error", err))
				poll = true
			}
		}
	}

	var eventCh <-chan fsnotify.Event
	var errCh <-chan error
	if w != nil {
		eventCh = w.Events
		errCh = w.Errors
	}

	var pollCh <-chan time.Time
	if poll {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		pollCh = ticker.C
	}

	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	pending := false
	trigger := func() {
		if !debounceTimer.Stop() {
			select {
			case <-debounceTimer.C:
			default:
			}
		}
		debounceTimer.Reset(s.debounce)
		pending = true
	}

	s.logger.Info("watching query files", slog.Int("files", len(s.files)), slog.Bool("polling", poll))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("query watcher stopping")
			return nil

		case ev, ok := <-eventCh:
			if !ok {
				return nil
			}
			if s.relevant(ev) {
				s.logger.Debug("query file changed", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
				trigger()
			}

		case err, ok := <-errCh:
			if !ok {
				return nil
			}
			s.logger.Error("fsnotify error", slog.Any("error", err))

		case <-pollCh:
			if s.pollChanged() {
				trigger()
			}

		case <-debounceTimer.C:
			if !pending {
				continue
			}
			pending = false
			s.run(ctx)
		}
	}
}

func (s *Service) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	if _, ok := s.files[abs]; !ok {
		return false
	}
	// A rename away leaves nothing to run until the file comes back.
	st, err := statFile(abs)
	if err != nil {
		return false
	}
	s.mu.Lock()
	s.stamp[abs] = st
	s.mu.Unlock()
	return true
}

func (s *Service) pollChanged() bool {
	changed := false
	s.mu.Lock()
	defer s.mu.Unlock()
	for f := range s.files {
		st, err := statFile(f)
		if err != nil {
			continue
		}
		if st != s.stamp[f] {
			s.stamp[f] = st
			changed = true
		}
	}
	return changed
}

func (s *Service) run(ctx context.Context) {
	start := time.Now()
	err := s.runFn(ctx)

	s.mu.Lock()
	s.runs++
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("query run failed", slog.Any("error", err), slog.Duration("elapsed", time.Since(start)))
		return
	}
	s.logger.Info("query re-run complete", slog.Duration("elapsed", time.Since(start)))
}

func statFile(path string) (fileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, err
	}
	if info.IsDir() {
		return fileStamp{}, fmt.Errorf("%s is a directory", path)
	}
	return fileStamp{modTime: info.ModTime(), size: info.Size()}, nil
}

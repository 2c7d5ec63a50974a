// Package logging builds the slog logger shared by every quarry command.
// Records go to stderr so that stdout carries only rendered results, and
// optionally to a rotating file.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes the desired logging setup.
type Config struct {
	Level          string `yaml:"level"`
	Format         string `yaml:"format"`
	FilePath       string `yaml:"file_path,omitempty"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb,omitempty"`
	FileMaxFiles   int    `yaml:"file_max_files,omitempty"`
	FileMaxAgeDays int    `yaml:"file_max_age_days,omitempty"`

	// Console receives log records. Nil means os.Stderr.
	Console io.Writer `yaml:"-"`
}

// SwappableHandler is a slog.Handler whose delegate can be replaced at
// runtime. Loggers derived with With or WithGroup follow the swap.
type SwappableHandler struct {
	root *atomic.Pointer[slog.Handler]
	ops  []func(slog.Handler) slog.Handler
}

// NewSwappableHandler creates a SwappableHandler wrapping h.
func NewSwappableHandler(h slog.Handler) *SwappableHandler {
	s := &SwappableHandler{root: &atomic.Pointer[slog.Handler]{}}
	s.root.Store(&h)
	return s
}

// Swap replaces the delegate for this handler and every handler derived
// from it.
func (s *SwappableHandler) Swap(h slog.Handler) {
	s.root.Store(&h)
}

func (s *SwappableHandler) current() slog.Handler {
	h := *s.root.Load()
	for _, op := range s.ops {
		h = op(h)
	}
	return h
}

func (s *SwappableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*s.root.Load()).Enabled(ctx, level)
}

func (s *SwappableHandler) Handle(ctx context.Context, r slog.Record) error {
	return s.current().Handle(ctx, r)
}

func (s *SwappableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return s.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (s *SwappableHandler) WithGroup(name string) slog.Handler {
	return s.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (s *SwappableHandler) derive(op func(slog.Handler) slog.Handler) *SwappableHandler {
	ops := make([]func(slog.Handler) slog.Handler, len(s.ops), len(s.ops)+1)
	copy(ops, s.ops)
	return &SwappableHandler{root: s.root, ops: append(ops, op)}
}

// Manager owns the logger and its optional log file. The CLI creates one
// before flags are known and reconfigures it once the config is loaded.
type Manager struct {
	levelVar *slog.LevelVar
	handler  *SwappableHandler
	config   Config
	mu       sync.Mutex
	closer   io.Closer
}

// NewManager creates a Manager and the logger it controls.
func NewManager(cfg Config) (*Manager, *slog.Logger) {
	lvl := &slog.LevelVar{}
	lvl.Set(parseLevel(cfg.Level))

	writer, closer := buildWriter(cfg)
	m := &Manager{
		levelVar: lvl,
		handler:  NewSwappableHandler(buildHandler(writer, lvl, cfg.Format)),
		config:   cfg,
		closer:   closer,
	}
	return m, slog.New(m.handler)
}

// Reconfigure applies cfg. A level change takes effect immediately; a
// format or destination change rebuilds the handler.
func (m *Manager) Reconfigure(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.levelVar.Set(parseLevel(cfg.Level))

	needSwap := cfg.Format != m.config.Format ||
		cfg.Console != m.config.Console ||
		cfg.FilePath != m.config.FilePath ||
		cfg.FileMaxSizeMB != m.config.FileMaxSizeMB ||
		cfg.FileMaxFiles != m.config.FileMaxFiles ||
		cfg.FileMaxAgeDays != m.config.FileMaxAgeDays

	if needSwap {
		if m.closer != nil {
			m.closer.Close() //nolint:errcheck
			m.closer = nil
		}
		writer, closer := buildWriter(cfg)
		m.handler.Swap(buildHandler(writer, m.levelVar, cfg.Format))
		m.closer = closer
	}
	m.config = cfg
}

// SetLevel changes only the level.
func (m *Manager) SetLevel(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levelVar.Set(parseLevel(level))
	m.config.Level = FormatLevel(m.levelVar.Level())
}

// Config returns the current configuration snapshot.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Close releases the log file, if any. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closer != nil {
		err := m.closer.Close()
		m.closer = nil
		return err
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FormatLevel converts a slog.Level to its config name.
func FormatLevel(l slog.Level) string {
	switch l {
	case slog.LevelDebug:
		return "debug"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelError:
		return "error"
	default:
		return "info"
	}
}

// buildWriter returns the console writer, teed into a lumberjack file when
// FilePath is set. The closer is the lumberjack logger.
func buildWriter(cfg Config) (io.Writer, io.Closer) {
	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}
	if cfg.FilePath == "" {
		return console, nil
	}

	defaults := DefaultConfig()
	maxSize := cfg.FileMaxSizeMB
	if maxSize <= 0 {
		maxSize = defaults.FileMaxSizeMB
	}
	maxFiles := cfg.FileMaxFiles
	if maxFiles <= 0 {
		maxFiles = defaults.FileMaxFiles
	}
	maxAge := cfg.FileMaxAgeDays
	if maxAge <= 0 {
		maxAge = defaults.FileMaxAgeDays
	}

	lj := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    maxSize,
		MaxBackups: maxFiles,
		MaxAge:     maxAge,
	}
	return io.MultiWriter(console, lj), lj
}

func buildHandler(w io.Writer, leveler slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: leveler}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ValidLevel reports whether s is a recognized log level.
func ValidLevel(s string) bool {
	switch s {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// ValidFormat reports whether s is a recognized log format.
func ValidFormat(s string) bool {
	return s == "text" || s == "json"
}

// DefaultConfig returns the CLI defaults: warnings and above, as text.
func DefaultConfig() Config {
	return Config{
		Level:          "warn",
		Format:         "text",
		FileMaxSizeMB:  10,
		FileMaxFiles:   3,
		FileMaxAgeDays: 30,
	}
}

func (c Config) String() string {
	s := fmt.Sprintf("level=%s format=%s", c.Level, c.Format)
	if c.FilePath != "" {
		s += fmt.Sprintf(" file=%s max_size=%dMB max_files=%d max_age=%dd",
			c.FilePath, c.FileMaxSizeMB, c.FileMaxFiles, c.FileMaxAgeDays)
	}
	return s
}

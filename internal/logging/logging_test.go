package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewManager_DefaultConfig(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Console = &buf
	mgr, logger := NewManager(cfg)
	defer mgr.Close() //nolint:errcheck

	if mgr.Config().Level != "warn" {
		t.Errorf("expected level warn, got %s", mgr.Config().Level)
	}
	logger.Info("hidden")
	logger.Warn("endpoint slow", slog.String("endpoint", "http://dbpedia.org/sparql"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered: %s", out)
	}
	if !strings.Contains(out, "endpoint=http://dbpedia.org/sparql") {
		t.Errorf("expected text record, got %s", out)
	}
}

func TestManager_LevelSwap(t *testing.T) {
	mgr, logger := NewManager(Config{Level: "info", Format: "json", Console: &bytes.Buffer{}})
	defer mgr.Close() //nolint:errcheck
	ctx := context.Background()

	if !logger.Enabled(ctx, slog.LevelInfo) || logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("expected info enabled and debug disabled")
	}

	mgr.SetLevel("debug")
	if !logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("expected debug to be enabled after SetLevel")
	}
	if mgr.Config().Level != "debug" {
		t.Errorf("config level = %s", mgr.Config().Level)
	}

	mgr.Reconfigure(Config{Level: "error", Format: "json", Console: mgr.Config().Console})
	if logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("expected info to be disabled when level is error")
	}
}

func TestManager_FormatSwapKeepsDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	mgr, logger := NewManager(Config{Level: "info", Format: "text", Console: &buf})
	defer mgr.Close() //nolint:errcheck

	child := logger.With(slog.String("component", "runner"))
	mgr.Reconfigure(Config{Level: "info", Format: "json", Console: &buf})
	child.Info("query finished")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected a JSON record, got %q: %v", buf.String(), err)
	}
	if rec["component"] != "runner" || rec["msg"] != "query finished" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestManager_FileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "quarry.log")
	var console bytes.Buffer

	mgr, logger := NewManager(Config{
		Level:    "info",
		Format:   "json",
		FilePath: logFile,
		Console:  &console,
	})
	logger.Info("hello from test")
	if err := mgr.Close(); err != nil {
		t.Fatalf("closing manager: %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !bytes.Contains(data, []byte("hello from test")) {
		t.Errorf("log file missing record: %s", data)
	}
	if console.Len() == 0 {
		t.Error("expected the record on the console too")
	}
}

func TestManager_CloseIdempotent(t *testing.T) {
	mgr, _ := NewManager(DefaultConfig())
	if err := mgr.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestValidLevelAndFormat(t *testing.T) {
	for _, l := range []string{"debug", "info", "warn", "error"} {
		if !ValidLevel(l) {
			t.Errorf("expected %q to be valid", l)
		}
	}
	for _, l := range []string{"", "trace", "fatal"} {
		if ValidLevel(l) {
			t.Errorf("expected %q to be invalid", l)
		}
	}
	if !ValidFormat("text") || !ValidFormat("json") || ValidFormat("xml") {
		t.Error("unexpected ValidFormat result")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in  string
		out slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"unknown", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.out {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.out)
		}
	}
}

func TestConfig_String(t *testing.T) {
	cfg := Config{Level: "info", Format: "json"}
	if s := cfg.String(); s != "level=info format=json" {
		t.Errorf("unexpected string: %s", s)
	}
	cfg.FilePath = "/var/log/quarry.log"
	cfg.FileMaxSizeMB = 5
	cfg.FileMaxFiles = 2
	cfg.FileMaxAgeDays = 7
	want := "level=info format=json file=/var/log/quarry.log max_size=5MB max_files=2 max_age=7d"
	if s := cfg.String(); s != want {
		t.Errorf("got %q, want %q", s, want)
	}
}

// Package config loads quarry settings from an optional YAML file and the
// environment. Command-line flags are applied on top by the CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/quarry/internal/logging"
	"github.com/sydlexius/quarry/internal/render"
	"github.com/sydlexius/quarry/internal/sparql"
	"github.com/sydlexius/quarry/internal/telemetry"
)

// DefaultPath is the config file looked up when QUARRY_CONFIG_PATH is unset.
const DefaultPath = "quarry.yaml"

// Config holds all quarry settings.
type Config struct {
	Endpoint EndpointConfig   `yaml:"endpoint"`
	Query    QueryConfig      `yaml:"query"`
	Output   OutputConfig     `yaml:"output"`
	History  HistoryConfig    `yaml:"history"`
	Logging  logging.Config   `yaml:"logging"`
	Tracing  telemetry.Config `yaml:"tracing"`
}

// EndpointConfig describes the SPARQL service and how to reach it.
type EndpointConfig struct {
	URL       string        `yaml:"url"`
	Method    string        `yaml:"method"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	RateLimit float64       `yaml:"rate_limit"`
	HTTP3     bool          `yaml:"http3"`
}

// QueryConfig locates the query text.
type QueryConfig struct {
	File   string `yaml:"file"`
	Bank   string `yaml:"bank"`
	Tag    string `yaml:"tag"`
	Vars   string `yaml:"vars"`
	Strict bool   `yaml:"strict"`
}

// OutputConfig selects the renderer and destination.
type OutputConfig struct {
	Format  string `yaml:"format"`
	Var     string `yaml:"var"`
	HrefVar string `yaml:"href_var"`
	Title   string `yaml:"title"`
	Style   string `yaml:"style"`
	Path    string `yaml:"path"`
}

// HistoryConfig controls the run log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns a Config with defaults filled in. The endpoint is empty
// and must come from the file, the environment or a flag.
func Default() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			Method:  "get",
			Timeout: sparql.DefaultTimeout,
		},
		Output: OutputConfig{
			Format: render.FormatText,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    defaultHistoryPath(),
		},
		Logging: logging.DefaultConfig(),
	}
}

func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".quarry", "history.db")
	}
	return filepath.Join(dir, "quarry", "history.db")
}

// Load reads path (when it exists), applies environment overrides and
// validates the result. An empty path falls back to QUARRY_CONFIG_PATH and
// then DefaultPath.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("QUARRY_CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
	}
	if err := cfg.loadFromFile(path); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() error {
	if v := os.Getenv("ENDPOINT_URL"); v != "" {
		c.Endpoint.URL = v
	}
	if v := os.Getenv("QUERY_FILE"); v != "" {
		c.Query.File = v
	}
	if v := os.Getenv("QUARRY_METHOD"); v != "" {
		c.Endpoint.Method = v
	}
	if v := os.Getenv("QUARRY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("QUARRY_TIMEOUT: %w", err)
		}
		c.Endpoint.Timeout = d
	}
	if v := os.Getenv("QUARRY_FORMAT"); v != "" {
		c.Output.Format = v
	}
	if v := os.Getenv("QUARRY_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("QUARRY_HISTORY"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("QUARRY_HISTORY: %w", err)
		}
		c.History.Enabled = enabled
	}
	if v := os.Getenv("QUARRY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("QUARRY_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("QUARRY_OTLP_ENDPOINT"); v != "" {
		c.Tracing.OTLPEndpoint = v
	}
	return nil
}

// Validate checks the settings and normalizes case. The endpoint URL is
// checked only when set; commands that need it call RequireEndpoint.
func (c *Config) Validate() error {
	c.Endpoint.URL = strings.TrimSpace(c.Endpoint.URL)
	if c.Endpoint.URL != "" {
		if _, err := sparql.ParseEndpoint(c.Endpoint.URL); err != nil {
			return err
		}
	}
	if _, err := sparql.ParseMethod(c.Endpoint.Method); err != nil {
		return err
	}
	if c.Endpoint.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %s", c.Endpoint.Timeout)
	}
	if c.Endpoint.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative: %g", c.Endpoint.RateLimit)
	}

	c.Output.Format = strings.ToLower(c.Output.Format)
	if _, err := render.New(c.Output.Format, render.Options{}); err != nil {
		return err
	}

	if c.Query.Tag != "" && c.Query.Bank == "" {
		return fmt.Errorf("query tag %q needs a query bank", c.Query.Tag)
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history path is required when history is enabled")
	}

	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	if !logging.ValidFormat(c.Logging.Format) {
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	return nil
}

// RequireEndpoint returns the parsed endpoint or an error naming the ways
// to set it.
func (c *Config) RequireEndpoint() (sparql.Endpoint, error) {
	if c.Endpoint.URL == "" {
		return sparql.Endpoint{}, fmt.Errorf("no endpoint configured: set ENDPOINT_URL, endpoint.url or --endpoint")
	}
	return sparql.ParseEndpoint(c.Endpoint.URL)
}

// ClientOptions translates the endpoint settings into client options.
func (c *Config) ClientOptions() ([]sparql.Option, error) {
	method, err := sparql.ParseMethod(c.Endpoint.Method)
	if err != nil {
		return nil, err
	}
	opts := []sparql.Option{
		sparql.WithMethod(method),
		sparql.WithTimeout(c.Endpoint.Timeout),
		sparql.WithUserAgent(c.Endpoint.UserAgent),
		sparql.WithRateLimit(c.Endpoint.RateLimit),
	}
	if c.Endpoint.HTTP3 {
		opts = append(opts, sparql.WithHTTP3())
	}
	return opts, nil
}

// RenderOptions returns the renderer settings.
func (c *Config) RenderOptions() render.Options {
	return render.Options{
		Var:     c.Output.Var,
		HrefVar: c.Output.HrefVar,
		Title:   c.Output.Title,
		Style:   c.Output.Style,
	}
}

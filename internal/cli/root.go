// Package cli implements the quarry command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sydlexius/quarry/internal/config"
	"github.com/sydlexius/quarry/internal/logging"
	"github.com/sydlexius/quarry/internal/telemetry"
)

// DefaultEnvFile is loaded from the working directory when present.
const DefaultEnvFile = ".env"

// RootOptions holds global flags and the state built from them before a
// subcommand runs.
type RootOptions struct {
	ConfigPath string
	EnvFile    string
	Verbose    bool

	cfg      *config.Config
	logMgr   *logging.Manager
	logger   *slog.Logger
	shutdown telemetry.ShutdownFunc
}

// NewRootCommand creates the root command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quarry",
		Short: "Run parameterized SPARQL queries and render the results",
		Long: `quarry fills placeholders in a SPARQL query, sends it to an endpoint,
parses the SPARQL JSON results and prints them as text, HTML or a table.

Settings come from quarry.yaml, then the environment (ENDPOINT_URL,
QUERY_FILE, QUARRY_*), then flags. A .env file in the working directory is
loaded first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default $QUARRY_CONFIG_PATH or ./quarry.yaml)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file to load (default ./.env if present)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newRenderCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newBankCommand(opts))
	return cmd
}

// Execute runs the command line in args and releases logging and tracing
// resources afterwards, whatever the outcome.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	opts.close(context.WithoutCancel(ctx))
	return err
}

func (o *RootOptions) setup(cmd *cobra.Command) error {
	defaults := logging.DefaultConfig()
	defaults.Console = cmd.ErrOrStderr()
	o.logMgr, o.logger = logging.NewManager(defaults)

	if err := loadEnvFile(o.EnvFile); err != nil {
		return err
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	o.cfg = cfg

	logCfg := cfg.Logging
	logCfg.Console = cmd.ErrOrStderr()
	o.logMgr.Reconfigure(logCfg)
	if o.Verbose {
		o.logMgr.SetLevel("debug")
	}
	o.logger.Debug("configuration loaded", slog.String("logging", o.logMgr.Config().String()))

	o.shutdown, err = telemetry.Setup(cmd.Context(), cfg.Tracing, o.logger)
	if err != nil {
		return err
	}
	return nil
}

func (o *RootOptions) close(ctx context.Context) {
	if o.shutdown != nil {
		if err := o.shutdown(ctx); err != nil {
			o.logger.Warn("flushing traces", slog.Any("error", err))
		}
	}
	if o.logMgr != nil {
		_ = o.logMgr.Close()
	}
}

// loadEnvFile loads path, or DefaultEnvFile when path is empty. Only an
// explicitly named file is required to exist. Variables already set in the
// environment win.
func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

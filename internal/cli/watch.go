package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sydlexius/quarry/internal/watcher"
)

var errInlineWatch = errors.New("watch needs a query file or query bank, not an inline query")

type watchOptions struct {
	*RootOptions
	query    queryFlags
	output   outputFlags
	debounce time.Duration
	probe    time.Duration
}

func newWatchCommand(root *RootOptions) *cobra.Command {
	opts := &watchOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run a query each time its file changes",
		Long: `Run the query once, then again whenever the query file, query bank or
substitutions file is saved. Failed runs are reported and watching
continues. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyFlags(cmd, opts.cfg, &opts.query, &opts.output); err != nil {
				return err
			}
			if opts.query.Query != "" {
				return errInlineWatch
			}
			ctx := cmd.Context()
			s, err := newSession(ctx, opts.RootOptions, &opts.query, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer s.close()

			files := s.sources()
			if len(files) == 0 {
				return errInlineWatch
			}

			runFn := func(ctx context.Context) error {
				err := s.runOnce(ctx, cmd.OutOrStdout())
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
				}
				return err
			}
			_ = runFn(ctx)

			svc, err := watcher.NewService(runFn, files, opts.logger)
			if err != nil {
				return err
			}
			svc.SetDebounce(opts.debounce)
			svc.SetProbeTimeout(opts.probe)
			opts.logger.Info("watching for changes", slog.Any("files", files))
			return svc.Start(ctx)
		},
	}

	opts.query.register(cmd)
	opts.output.register(cmd)
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 300*time.Millisecond, "quiet period before re-running")
	cmd.Flags().DurationVar(&opts.probe, "probe", 0, "check that file events arrive within this long, else poll")
	return cmd
}

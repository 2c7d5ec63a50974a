package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sydlexius/quarry/internal/database"
	"github.com/sydlexius/quarry/internal/history"
)

func newHistoryCommand(root *RootOptions) *cobra.Command {
	var (
		filter   history.Filter
		pruneAge time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded query runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := database.OpenMigrated(ctx, root.cfg.History.Path)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck
			if v, err := database.Version(ctx, db); err == nil {
				root.logger.Debug("history store opened",
					slog.String("path", root.cfg.History.Path),
					slog.Int64("schema_version", v),
				)
			}
			store := history.NewStore(db)

			if pruneAge > 0 {
				cutoff := time.Now().Add(-pruneAge)
				n, err := store.Prune(ctx, cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d runs started before %s\n", n, humanize.Time(cutoff))
				return nil
			}

			runs, err := store.List(ctx, filter)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			history.WriteTable(cmd.OutOrStdout(), runs, time.Now())
			return nil
		},
	}

	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "maximum runs to show, 0 for all")
	cmd.Flags().StringVar(&filter.Status, "status", "", "only runs with this status (ok, empty, http_error, ...)")
	cmd.Flags().StringVar(&filter.QueryHash, "query-hash", "", "only runs of the query with this fingerprint")
	cmd.Flags().DurationVar(&pruneAge, "prune", 0, "delete runs older than this instead of listing")
	return cmd
}

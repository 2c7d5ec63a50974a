package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sydlexius/quarry/internal/query"
)

func newBankCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank [file] [tag]",
		Short: "List the queries in a query bank, or print one",
		Long: `A query bank holds several queries, each introduced by a "# tag: name"
line. Without a tag the tags are listed; with one, that query is printed.
The file defaults to query.bank from the config.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := root.cfg.Query.Bank
			if len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no query bank given")
			}
			bank, err := query.LoadBankFile(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 2 {
				tmpl, err := bank.Template(args[1])
				if err != nil {
					return err
				}
				text := tmpl.Text()
				if !strings.HasSuffix(text, "\n") {
					text += "\n"
				}
				_, err = fmt.Fprint(out, text)
				return err
			}
			for _, name := range bank.Names() {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
	return cmd
}

package cli

import (
	"github.com/spf13/cobra"
)

type runOptions struct {
	*RootOptions
	query  queryFlags
	output outputFlags
}

func newRunCommand(root *RootOptions) *cobra.Command {
	opts := &runOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a query once and print the results",
		Long: `Fill the query's placeholders, send it to the endpoint and render the
results.

Examples:
  quarry run -e http://dbpedia.org/sparql -f ex361.rq
  quarry run --bank movies.rq -t common-actors \
      --var DIR1-NAME="Steven Spielberg" --var DIR2-NAME="Stanley Kubrick" \
      -o html --var-name actorName --href-var freebaseURI --output actors.html
  quarry run -q 'SELECT * WHERE { ?s ?p ?o } LIMIT 3' --raw`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyFlags(cmd, opts.cfg, &opts.query, &opts.output); err != nil {
				return err
			}
			s, err := newSession(cmd.Context(), opts.RootOptions, &opts.query, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer s.close()
			return s.runOnce(cmd.Context(), cmd.OutOrStdout())
		},
	}

	opts.query.register(cmd)
	opts.output.register(cmd)
	return cmd
}

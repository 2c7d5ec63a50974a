package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sydlexius/quarry/internal/render"
	"github.com/sydlexius/quarry/internal/results"
)

func newRenderCommand(root *RootOptions) *cobra.Command {
	var (
		input  string
		output outputFlags
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a saved SPARQL JSON results document",
		Long: `Read a SPARQL 1.1 JSON results document from a file or stdin and render
it without contacting an endpoint.

Example:
  curl -s -H 'Accept: application/sparql-results+json' "$URL" | quarry render -o html-table`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			if err := applyFlags(cmd, cfg, nil, &output); err != nil {
				return err
			}
			renderer, err := newRenderer(cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if input != "" && input != "-" {
				f, err := os.Open(input) //nolint:gosec // G304: path comes from the operator
				if err != nil {
					return err
				}
				defer f.Close() //nolint:errcheck
				r = f
			}

			raw, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("reading results: %w", err)
			}
			out, err := renderDocument(renderer, raw)
			if err != nil {
				return err
			}
			return writeOutput(cfg, cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "-", "results file, - for stdin")
	output.register(cmd)
	return cmd
}

// renderDocument renders a SELECT or ASK results document.
func renderDocument(renderer render.Renderer, raw []byte) (string, error) {
	if results.IsBoolean(raw) {
		answer, err := results.ParseBoolean(raw)
		if err != nil {
			return "", err
		}
		return render.Boolean(renderer, answer)
	}
	rs, err := results.Parse(raw)
	if err != nil {
		return "", err
	}
	return renderer.Render(rs)
}

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sydlexius/quarry/internal/config"
	"github.com/sydlexius/quarry/internal/database"
	"github.com/sydlexius/quarry/internal/filesystem"
	"github.com/sydlexius/quarry/internal/history"
	"github.com/sydlexius/quarry/internal/query"
	"github.com/sydlexius/quarry/internal/render"
	"github.com/sydlexius/quarry/internal/runner"
	"github.com/sydlexius/quarry/internal/sparql"
)

// queryFlags are shared by run and watch.
type queryFlags struct {
	Endpoint  string
	Query     string
	QueryFile string
	Bank      string
	Tag       string
	VarsFile  string
	Vars      []string
	Method    string
	Timeout   time.Duration
	Raw       bool
	Strict    bool
	NoHistory bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.Endpoint, "endpoint", "e", "", "SPARQL endpoint URL (default $ENDPOINT_URL)")
	fl.StringVarP(&f.Query, "query", "q", "", "query text")
	fl.StringVarP(&f.QueryFile, "query-file", "f", "", "file holding the query (default $QUERY_FILE)")
	fl.StringVar(&f.Bank, "bank", "", "query bank file with '# tag:' sections")
	fl.StringVarP(&f.Tag, "tag", "t", "", "query to run from the bank")
	fl.StringVar(&f.VarsFile, "vars", "", "JSON5 file of placeholder substitutions")
	fl.StringArrayVar(&f.Vars, "var", nil, "placeholder substitution KEY=value (repeatable)")
	fl.StringVar(&f.Method, "method", "", "submit with get or post")
	fl.DurationVar(&f.Timeout, "timeout", 0, "request timeout, 0 for none (default 30s)")
	fl.BoolVar(&f.Raw, "raw", false, "print the response body without parsing")
	fl.BoolVar(&f.Strict, "strict", false, "fail on substitutions that are not in the query")
	fl.BoolVar(&f.NoHistory, "no-history", false, "do not record this run")
}

// outputFlags are shared by run, watch and render.
type outputFlags struct {
	Format  string
	Var     string
	HrefVar string
	Title   string
	Style   string
	Output  string
}

func (f *outputFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.Format, "format", "o", "", "output format: "+strings.Join(render.Formats(), ", "))
	fl.StringVar(&f.Var, "var-name", "", "variable printed by text, link text for html")
	fl.StringVar(&f.HrefVar, "href-var", "", "variable used as the link target for html")
	fl.StringVar(&f.Title, "title", "", "page title for html formats")
	fl.StringVar(&f.Style, "style", "", "table style: light, rounded, double, ascii")
	fl.StringVar(&f.Output, "output", "", "write to this file instead of stdout")
}

// applyFlags copies the flags that were set on cmd into cfg and revalidates it.
func applyFlags(cmd *cobra.Command, cfg *config.Config, q *queryFlags, o *outputFlags) error {
	changed := cmd.Flags().Changed
	if q != nil {
		if changed("endpoint") {
			cfg.Endpoint.URL = q.Endpoint
		}
		if changed("query-file") {
			cfg.Query.File = q.QueryFile
		}
		if changed("bank") {
			cfg.Query.Bank = q.Bank
		}
		if changed("tag") {
			cfg.Query.Tag = q.Tag
		}
		if changed("vars") {
			cfg.Query.Vars = q.VarsFile
		}
		if changed("strict") {
			cfg.Query.Strict = q.Strict
		}
		if changed("method") {
			cfg.Endpoint.Method = q.Method
		}
		if changed("timeout") {
			cfg.Endpoint.Timeout = q.Timeout
		}
		if q.NoHistory {
			cfg.History.Enabled = false
		}
	}
	if o != nil {
		if changed("format") {
			cfg.Output.Format = o.Format
		}
		if changed("var-name") {
			cfg.Output.Var = o.Var
		}
		if changed("href-var") {
			cfg.Output.HrefVar = o.HrefVar
		}
		if changed("title") {
			cfg.Output.Title = o.Title
		}
		if changed("style") {
			cfg.Output.Style = o.Style
		}
		if changed("output") {
			cfg.Output.Path = o.Output
		}
	}
	return cfg.Validate()
}

// newRenderer builds the configured renderer. Tables default to box
// drawing on a terminal and plain ASCII otherwise.
func newRenderer(cfg *config.Config, stdout io.Writer) (render.Renderer, error) {
	opts := cfg.RenderOptions()
	if opts.Style == "" {
		opts.Style = render.StyleASCII
		if cfg.Output.Path == "" && isTerminal(stdout) {
			opts.Style = render.StyleLight
		}
	}
	return render.New(cfg.Output.Format, opts)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// writeOutput prints out, or writes it atomically to cfg.Output.Path.
func writeOutput(cfg *config.Config, stdout io.Writer, out string) error {
	if cfg.Output.Path == "" {
		_, err := io.WriteString(stdout, out)
		return err
	}
	if err := filesystem.WriteFileAtomic(cfg.Output.Path, []byte(out), 0o644); err != nil { //nolint:gosec // G306: rendered output is meant to be shared
		return fmt.Errorf("writing %s: %w", cfg.Output.Path, err)
	}
	return nil
}

// session holds what one run or a sequence of watched runs share: the
// endpoint, the client, the history store and the renderer.
type session struct {
	cfg      *config.Config
	flags    *queryFlags
	logger   *slog.Logger
	endpoint sparql.Endpoint
	client   *sparql.Client
	runner   *runner.Runner
	renderer render.Renderer
	closers  []func() error
}

func newSession(ctx context.Context, root *RootOptions, flags *queryFlags, stdout io.Writer) (*session, error) {
	cfg := root.cfg
	s := &session{cfg: cfg, flags: flags, logger: root.logger}

	var err error
	if s.endpoint, err = cfg.RequireEndpoint(); err != nil {
		return nil, err
	}
	if !flags.Raw {
		if s.renderer, err = newRenderer(cfg, stdout); err != nil {
			return nil, err
		}
	}

	clientOpts, err := cfg.ClientOptions()
	if err != nil {
		return nil, err
	}
	s.client = sparql.NewClient(append(clientOpts, sparql.WithLogger(root.logger))...)
	s.closers = append(s.closers, s.client.Close)

	runOpts := []runner.Option{runner.WithLogger(root.logger)}
	if cfg.History.Enabled {
		db, err := database.OpenMigrated(ctx, cfg.History.Path)
		if err != nil {
			// History is best effort: the query still runs.
			root.logger.Warn("run history disabled", slog.String("path", cfg.History.Path), slog.Any("error", err))
		} else {
			s.closers = append(s.closers, db.Close)
			runOpts = append(runOpts, runner.WithRecorder(history.NewStore(db)))
		}
	}
	s.runner = runner.New(s.client, runOpts...)
	return s, nil
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// request reads the query and substitutions afresh so watch picks up edits.
func (s *session) request() (runner.Request, error) {
	var opts []query.Option
	if s.cfg.Query.Strict {
		opts = append(opts, query.Strict())
	}

	req := runner.Request{
		Endpoint: s.endpoint,
		Raw:      s.flags.Raw,
		Renderer: s.renderer,
		Format:   s.cfg.Output.Format,
	}

	switch {
	case s.flags.Query != "":
		req.Template = query.New(s.flags.Query, opts...)
		req.Source = "inline"
	case s.cfg.Query.Bank != "":
		if s.cfg.Query.Tag == "" {
			return req, fmt.Errorf("--tag is required with a query bank")
		}
		bank, err := query.LoadBankFile(s.cfg.Query.Bank)
		if err != nil {
			return req, err
		}
		if req.Template, err = bank.Template(s.cfg.Query.Tag, opts...); err != nil {
			return req, err
		}
		req.Source = s.cfg.Query.Bank + "#" + s.cfg.Query.Tag
	case s.cfg.Query.File != "":
		data, err := os.ReadFile(s.cfg.Query.File)
		if err != nil {
			return req, fmt.Errorf("reading query file: %w", err)
		}
		req.Template = query.New(string(data), opts...)
		req.Source = s.cfg.Query.File
	default:
		return req, fmt.Errorf("no query: use --query, --query-file (or QUERY_FILE) or --bank with --tag")
	}

	vars := map[string]string{}
	if s.cfg.Query.Vars != "" {
		fileVars, err := query.LoadVars(s.cfg.Query.Vars)
		if err != nil {
			return req, err
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}
	for _, pair := range s.flags.Vars {
		k, v, err := query.ParseVar(pair)
		if err != nil {
			return req, err
		}
		vars[k] = v
	}
	req.Vars = vars
	return req, nil
}

// runOnce executes one request and writes its output.
func (s *session) runOnce(ctx context.Context, stdout io.Writer) error {
	req, err := s.request()
	if err != nil {
		return s.runner.Fail(ctx, req, err)
	}
	res, err := s.runner.Run(ctx, req)
	if err != nil {
		return err
	}
	return writeOutput(s.cfg, stdout, res.Output)
}

// sources lists the files a run reads, for watching.
func (s *session) sources() []string {
	var files []string
	switch {
	case s.flags.Query != "":
	case s.cfg.Query.Bank != "":
		files = append(files, s.cfg.Query.Bank)
	case s.cfg.Query.File != "":
		files = append(files, s.cfg.Query.File)
	}
	if s.cfg.Query.Vars != "" {
		files = append(files, s.cfg.Query.Vars)
	}
	return files
}

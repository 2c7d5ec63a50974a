// Package runner wires a query template, the SPARQL client, the result
// parser and a renderer into one invocation, and records its outcome.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/quarry/internal/history"
	"github.com/sydlexius/quarry/internal/query"
	"github.com/sydlexius/quarry/internal/render"
	"github.com/sydlexius/quarry/internal/results"
	"github.com/sydlexius/quarry/internal/sparql"
)

// Executor sends a query and returns the raw response body.
type Executor interface {
	Execute(ctx context.Context, endpoint sparql.Endpoint, query string, accept sparql.ResponseFormat) ([]byte, error)
	Method() sparql.Method
}

// Recorder stores run outcomes.
type Recorder interface {
	Record(ctx context.Context, r *history.Run) error
}

// ParseFunc turns a response body into a result set.
type ParseFunc func(raw []byte) (*results.ResultSet, error)

// Request describes one invocation.
type Request struct {
	Endpoint sparql.Endpoint
	Template *query.Template
	Vars     map[string]string
	// Source names where the query came from, e.g. a file or bank tag.
	Source string
	// Raw skips parsing and rendering and returns the body verbatim.
	Raw      bool
	Renderer render.Renderer
	// Format is the renderer name recorded in history.
	Format string
}

// Result is the outcome of a successful run.
type Result struct {
	Output    string
	RequestID string
	Query     string
	Results   *results.ResultSet // nil for raw and ASK runs
	Boolean   *bool              // set for ASK runs
	Bytes     int
	Duration  time.Duration
}

// Runner executes Requests. A Runner is safe for concurrent use when its
// Executor and Recorder are.
type Runner struct {
	client   Executor
	parse    ParseFunc
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithParser replaces results.Parse.
func WithParser(p ParseFunc) Option {
	return func(r *Runner) { r.parse = p }
}

// WithRecorder enables run history.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Runner around client.
func New(client Executor, opts ...Option) *Runner {
	r := &Runner{
		client: client,
		parse:  results.Parse,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(slog.String("component", "runner"))
	return r
}

// Run builds the query, sends exactly one request and renders the answer.
// A response with a failing HTTP status is returned as *sparql.HTTPStatusError
// and never parsed. Every outcome is recorded when a Recorder is set; a
// recording failure is logged and does not change the result.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	start := r.now()
	run := r.newRun(req, start)

	res, err := r.run(ctx, req, run.RequestID, run)
	run.Duration = r.now().Sub(start)
	if err != nil {
		r.fail(ctx, run, err)
		return nil, err
	}
	r.record(ctx, run)
	res.Duration = run.Duration
	return res, nil
}

// Fail records a run that could not be assembled, such as one whose query
// file or substitutions file is unreadable, and returns err unchanged. req
// carries whatever was known before the failure.
func (r *Runner) Fail(ctx context.Context, req Request, err error) error {
	run := r.newRun(req, r.now())
	r.fail(ctx, run, err)
	return err
}

func (r *Runner) newRun(req Request, start time.Time) *history.Run {
	run := &history.Run{
		RequestID:   uuid.NewString(),
		Endpoint:    req.Endpoint.String(),
		Method:      string(r.client.Method()),
		QuerySource: req.Source,
		Format:      req.Format,
		StartedAt:   start.UTC(),
	}
	if req.Raw {
		run.Format = sparql.FormatRaw.String()
	}
	return run
}

func (r *Runner) fail(ctx context.Context, run *history.Run, err error) {
	run.Status = Classify(err)
	if run.Status == history.StatusError && run.QueryHash == "" {
		// Nothing was sent: the query itself could not be built.
		run.Status = history.StatusTemplate
	}
	run.Error = err.Error()
	var statusErr *sparql.HTTPStatusError
	if errors.As(err, &statusErr) {
		run.HTTPStatus = statusErr.StatusCode
	}
	r.record(ctx, run)
	r.logger.Warn("query failed",
		slog.String("request_id", run.RequestID),
		slog.String("status", run.Status),
		slog.Any("error", err),
	)
}

func (r *Runner) run(ctx context.Context, req Request, requestID string, run *history.Run) (*Result, error) {
	if req.Template == nil {
		return nil, fmt.Errorf("building query: no query template")
	}
	if !req.Raw && req.Renderer == nil {
		return nil, fmt.Errorf("rendering results: no renderer")
	}

	text, err := req.Template.Render(req.Vars)
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	if unknown := req.Template.Unknown(req.Vars); len(unknown) > 0 && !req.Template.IsStrict() {
		r.logger.Debug("ignoring substitutions not in query", slog.Any("keys", unknown))
	}
	run.QueryHash = history.Fingerprint(text)

	accept := sparql.FormatJSON
	if req.Raw {
		accept = sparql.FormatRaw
	}

	body, err := r.client.Execute(sparql.WithRequestID(ctx, requestID), req.Endpoint, text, accept)
	if err != nil {
		return nil, err
	}
	run.Bytes = len(body)

	res := &Result{RequestID: requestID, Query: text, Bytes: len(body)}
	if req.Raw {
		res.Output = string(body)
		run.Status = history.StatusOK
		return res, nil
	}

	if results.IsBoolean(body) {
		return r.renderBoolean(req, body, res, run)
	}

	rs, err := r.parse(body)
	if err != nil {
		return nil, err
	}
	run.RowCount = rs.Len()

	out, err := req.Renderer.Render(rs)
	if err != nil {
		return nil, &RenderError{Err: err}
	}

	run.Status = history.StatusOK
	if rs.Empty() {
		run.Status = history.StatusEmpty
	}
	r.logger.Info("query complete",
		slog.String("request_id", requestID),
		slog.String("results", render.Summary(rs)),
	)

	res.Results = rs
	res.Output = out
	return res, nil
}

// renderBoolean handles an ASK answer.
func (r *Runner) renderBoolean(req Request, body []byte, res *Result, run *history.Run) (*Result, error) {
	answer, err := results.ParseBoolean(body)
	if err != nil {
		return nil, err
	}
	out, err := render.Boolean(req.Renderer, answer)
	if err != nil {
		return nil, &RenderError{Err: err}
	}
	run.Status = history.StatusOK
	r.logger.Info("query complete",
		slog.String("request_id", res.RequestID),
		slog.Bool("answer", answer),
	)
	res.Boolean = &answer
	res.Output = out
	return res, nil
}

func (r *Runner) record(ctx context.Context, run *history.Run) {
	if r.recorder == nil {
		return
	}
	// Record even when the run was canceled.
	ctx = context.WithoutCancel(ctx)
	if err := r.recorder.Record(ctx, run); err != nil {
		r.logger.Warn("recording run history", slog.Any("error", err))
	}
}

// RenderError wraps a renderer failure such as an unknown output variable.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string { return "rendering results: " + e.Err.Error() }

func (e *RenderError) Unwrap() error { return e.Err }

// Classify maps a run error to a history status.
func Classify(err error) string {
	var (
		netErr      *sparql.NetworkError
		statusErr   *sparql.HTTPStatusError
		malformed   *results.MalformedResultError
		unknownKeys *query.UnknownPlaceholderError
		renderErr   *RenderError
	)
	switch {
	case err == nil:
		return history.StatusOK
	case errors.As(err, &statusErr):
		return history.StatusHTTP
	case errors.As(err, &netErr):
		return history.StatusNetwork
	case errors.As(err, &malformed):
		return history.StatusMalformed
	case errors.As(err, &unknownKeys):
		return history.StatusTemplate
	case errors.As(err, &renderErr):
		return history.StatusRenderError
	}
	return history.StatusError
}

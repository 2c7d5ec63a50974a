package sparql

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/quic-go/quic-go/http3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	tracerName = "github.com/sydlexius/quarry/internal/sparql"

	// DefaultTimeout bounds a single request when no timeout is configured.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the client to public endpoints.
	DefaultUserAgent = "quarry/1.0 (+https://github.com/sydlexius/quarry)"

	// HeaderRequestID carries the per-request correlation id.
	HeaderRequestID = "X-Request-ID"
)

type requestIDKey struct{}

// WithRequestID returns a context whose requests are sent with id as their
// X-Request-ID instead of a freshly generated one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id set by WithRequestID, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// Client executes SPARQL queries over HTTP. It performs exactly one round
// trip per Execute call and never retries. A Client is safe for concurrent
// use.
type Client struct {
	rest      *resty.Client
	method    Method
	timeout   time.Duration
	userAgent string
	limiter   *rate.Limiter
	transport http.RoundTripper
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each request. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithMethod selects GET (query string) or POST (request body) submission.
func WithMethod(m Method) Option {
	return func(c *Client) { c.method = m }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit caps the request rate in requests per second. Zero or less
// disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// WithHTTP3 sends requests over HTTP/3. The endpoint must be https.
func WithHTTP3() Option {
	return func(c *Client) { c.transport = &http3.Transport{} }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// NewClient creates a Client. Without options it submits queries with GET,
// waits at most DefaultTimeout and does not rate limit.
func NewClient(opts ...Option) *Client {
	c := &Client{
		method:    MethodGet,
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "sparql-client"))

	rc := resty.New().
		SetRetryCount(0).
		SetTimeout(c.timeout).
		SetHeader("User-Agent", c.userAgent).
		SetLogger(restyLogger{logger: c.logger})
	if c.transport != nil {
		rc.SetTransport(c.transport)
	}
	c.rest = rc
	return c
}

// Method returns the configured submission method.
func (c *Client) Method() Method { return c.method }

// Close releases transport resources held by HTTP/3 connections.
func (c *Client) Close() error {
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Execute sends query to endpoint and returns the response body. It fails
// with *NetworkError when no response arrives and *HTTPStatusError when the
// status is 400 or above. Any other response body is returned untouched.
func (c *Client) Execute(ctx context.Context, endpoint Endpoint, query string, accept ResponseFormat) ([]byte, error) {
	if endpoint.IsZero() {
		return nil, fmt.Errorf("executing query: endpoint is not set")
	}

	requestID, ok := RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.New().String()
	}

	ctx, span := c.tracer.Start(ctx, "sparql.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", string(c.method)),
			attribute.String("server.address", endpoint.Host()),
			attribute.String("sparql.accept", accept.Accept()),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	logger := c.logger.With(
		slog.String("endpoint", endpoint.String()),
		slog.String("request_id", requestID),
	)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			netErr := &NetworkError{Endpoint: endpoint.String(), Cause: fmt.Errorf("rate limiter: %w", err)}
			span.RecordError(netErr)
			span.SetStatus(codes.Error, "rate limiter")
			return nil, netErr
		}
	}

	req := c.rest.R().
		SetContext(ctx).
		SetHeader("Accept", accept.Accept()).
		SetHeader(HeaderRequestID, requestID)

	logger.Debug("executing SPARQL query",
		slog.String("method", string(c.method)),
		slog.Int("query_bytes", len(query)),
	)
	start := time.Now()

	var (
		resp *resty.Response
		err  error
	)
	switch c.method {
	case MethodPost:
		resp, err = req.
			SetHeader("Content-Type", MediaSPARQLQuery).
			SetBody(query).
			Post(endpoint.String())
	default:
		resp, err = req.
			SetQueryParam("query", query).
			Get(endpoint.String())
	}
	if err != nil {
		netErr := &NetworkError{Endpoint: endpoint.String(), Cause: err}
		span.RecordError(netErr)
		span.SetStatus(codes.Error, "request failed")
		logger.Warn("SPARQL request failed", slog.Any("error", err))
		return nil, netErr
	}

	body := resp.Body()
	span.SetAttributes(
		attribute.Int("http.response.status_code", resp.StatusCode()),
		attribute.Int("http.response.body.size", len(body)),
	)
	logger.Debug("SPARQL response received",
		slog.Int("status", resp.StatusCode()),
		slog.String("size", humanize.Bytes(uint64(len(body)))),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode() >= http.StatusBadRequest {
		statusErr := &HTTPStatusError{
			Endpoint:   endpoint.String(),
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			Body:       body,
		}
		span.SetStatus(codes.Error, resp.Status())
		return nil, statusErr
	}

	span.SetStatus(codes.Ok, "")
	return body, nil
}

// restyLogger routes resty's internal messages to slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

package sparql

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const testQuery = `SELECT ?elvisbday WHERE {
  <http://dbpedia.org/resource/Elvis_Presley>
  <http://dbpedia.org/property/dateOfBirth> ?elvisbday .
}`

const elvisJSON = `{"head":{"vars":["elvisbday"]},"results":{"bindings":[{"elvisbday":{"type":"literal","value":"1935-01-08"}}]}}`

func endpointOf(t *testing.T, raw string) Endpoint {
	t.Helper()
	e, err := ParseEndpoint(raw)
	require.NoError(t, err)
	return e
}

type seenRequest struct {
	method       string
	queryParam   string
	defaultGraph string
	accept       string
	contentType  string
	requestID    string
	userAgent    string
	body         string
}

type captured struct {
	mu  sync.Mutex
	req seenRequest
}

func (c *captured) snapshot() seenRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.req
}

func newRecordingServer(t *testing.T, status int, body string) (*httptest.Server, *captured, *int32) {
	t.Helper()
	var hits int32
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		b, _ := io.ReadAll(r.Body)

		got.mu.Lock()
		got.req = seenRequest{
			method:       r.Method,
			queryParam:   r.URL.Query().Get("query"),
			defaultGraph: r.URL.Query().Get("default-graph-uri"),
			accept:       r.Header.Get("Accept"),
			contentType:  r.Header.Get("Content-Type"),
			requestID:    r.Header.Get(HeaderRequestID),
			userAgent:    r.Header.Get("User-Agent"),
			body:         string(b),
		}
		got.mu.Unlock()

		w.Header().Set("Content-Type", MediaSPARQLResultsJSON)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, got, &hits
}

func TestExecute_GET(t *testing.T) {
	srv, rec, hits := newRecordingServer(t, http.StatusOK, elvisJSON)
	endpoint := endpointOf(t, srv.URL + "/sparql?default-graph-uri=http%3A%2F%2Fdbpedia.org")

	body, err := NewClient().Execute(context.Background(), endpoint, testQuery, FormatJSON)
	require.NoError(t, err)
	got := rec.snapshot()

	assert.Equal(t, elvisJSON, string(body))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, testQuery, got.queryParam)
	assert.Equal(t, "http://dbpedia.org", got.defaultGraph, "existing endpoint parameters must survive")
	assert.Equal(t, MediaSPARQLResultsJSON, got.accept)
	assert.Equal(t, DefaultUserAgent, got.userAgent)
	assert.Len(t, got.requestID, 36)
}

func TestExecute_POST(t *testing.T) {
	srv, rec, _ := newRecordingServer(t, http.StatusOK, elvisJSON)

	c := NewClient(WithMethod(MethodPost), WithUserAgent("test-agent/1"))
	_, err := c.Execute(context.Background(), endpointOf(t, srv.URL), testQuery, FormatJSON)
	require.NoError(t, err)
	got := rec.snapshot()

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, MediaSPARQLQuery, got.contentType)
	assert.Equal(t, testQuery, got.body)
	assert.Empty(t, got.queryParam)
	assert.Equal(t, "test-agent/1", got.userAgent)
}

func TestExecute_RequestIDFromContext(t *testing.T) {
	srv, rec, _ := newRecordingServer(t, http.StatusOK, elvisJSON)

	ctx := WithRequestID(context.Background(), "run-42")
	_, err := NewClient().Execute(ctx, endpointOf(t, srv.URL), testQuery, FormatJSON)
	require.NoError(t, err)
	got := rec.snapshot()
	assert.Equal(t, "run-42", got.requestID)
}

func TestExecute_RawAccept(t *testing.T) {
	srv, rec, _ := newRecordingServer(t, http.StatusOK, "elvisbday\n1935-01-08\n")

	body, err := NewClient().Execute(context.Background(), endpointOf(t, srv.URL), testQuery, FormatRaw)
	require.NoError(t, err)
	got := rec.snapshot()
	assert.Equal(t, "*/*", got.accept)
	assert.Equal(t, "elvisbday\n1935-01-08\n", string(body))
}

func TestExecute_HTTPStatusError(t *testing.T) {
	srv, _, hits := newRecordingServer(t, http.StatusInternalServerError, "Virtuoso 37000 Error SP030: SPARQL compiler")

	body, err := NewClient().Execute(context.Background(), endpointOf(t, srv.URL), testQuery, FormatJSON)
	require.Error(t, err)
	assert.Nil(t, body)

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr), "want *HTTPStatusError, got %T", err)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Contains(t, string(statusErr.Body), "SP030")
	assert.Contains(t, err.Error(), "HTTP 500")

	var netErr *NetworkError
	assert.False(t, errors.As(err, &netErr))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits), "no retries expected")
}

func TestExecute_NonJSONSuccessIsReturned(t *testing.T) {
	srv, _, _ := newRecordingServer(t, http.StatusOK, "<html>maintenance</html>")

	body, err := NewClient().Execute(context.Background(), endpointOf(t, srv.URL), testQuery, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "<html>maintenance</html>", string(body))
}

func TestExecute_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := endpointOf(t, srv.URL)
	srv.Close()

	_, err := NewClient().Execute(context.Background(), endpoint, testQuery, FormatJSON)
	require.Error(t, err)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr), "want *NetworkError, got %T", err)
	assert.Equal(t, endpoint.String(), netErr.Endpoint)
}

func TestExecute_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(WithTimeout(50 * time.Millisecond))
	_, err := c.Execute(context.Background(), endpointOf(t, srv.URL), testQuery, FormatJSON)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr), "want *NetworkError, got %T", err)
}

func TestExecute_RateLimitCanceled(t *testing.T) {
	srv, _, hits := newRecordingServer(t, http.StatusOK, elvisJSON)
	c := NewClient(WithRateLimit(0.001))
	endpoint := endpointOf(t, srv.URL)

	_, err := c.Execute(context.Background(), endpoint, testQuery, FormatJSON)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Execute(ctx, endpoint, testQuery, FormatJSON)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr), "want *NetworkError, got %T", err)
	assert.Contains(t, err.Error(), "rate limiter")
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestExecute_ZeroEndpoint(t *testing.T) {
	_, err := NewClient().Execute(context.Background(), Endpoint{}, testQuery, FormatJSON)
	require.Error(t, err)
}

func TestExecute_Span(t *testing.T) {
	srv, _, _ := newRecordingServer(t, http.StatusBadGateway, "upstream down")

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background()) //nolint:errcheck

	c := NewClient(WithTracer(tp.Tracer("test")))
	_, err := c.Execute(context.Background(), endpointOf(t, srv.URL), testQuery, FormatJSON)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "sparql.query", spans[0].Name())

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, int64(http.StatusBadGateway), attrs["http.response.status_code"].AsInt64())
	assert.Equal(t, "GET", attrs["http.request.method"].AsString())
}

func TestHTTPStatusError_Snippet(t *testing.T) {
	long := strings.Repeat("é", 400) // 800 bytes
	e := &HTTPStatusError{Endpoint: "http://x", StatusCode: 400, Body: []byte(long)}

	s := e.Snippet()
	assert.True(t, strings.HasSuffix(s, "..."))
	assert.LessOrEqual(t, len(s), maxBodySnippet+3)
	assert.Equal(t, strings.Repeat("é", 256)+"...", s)
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{"http://dbpedia.org/sparql", false},
		{"https://query.wikidata.org/sparql", false},
		{"  http://localhost:8080/solr/store/sparql  ", false},
		{"", true},
		{"/sparql", true},
		{"ftp://example.org/sparql", true},
		{"http://", true},
		{"http://bad host/", true},
	}
	for _, tt := range tests {
		e, err := ParseEndpoint(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, "ParseEndpoint(%q)", tt.raw)
			continue
		}
		require.NoError(t, err, "ParseEndpoint(%q)", tt.raw)
		assert.False(t, e.IsZero())
		assert.Equal(t, strings.TrimSpace(tt.raw), e.String())
	}
}

func TestParseMethodAndFormat(t *testing.T) {
	m, err := ParseMethod("post")
	require.NoError(t, err)
	assert.Equal(t, MethodPost, m)
	m, err = ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodGet, m)
	_, err = ParseMethod("put")
	assert.Error(t, err)

	f, err := ParseResponseFormat("RAW")
	require.NoError(t, err)
	assert.Equal(t, FormatRaw, f)
	assert.Equal(t, "raw", f.String())
	_, err = ParseResponseFormat("xml")
	assert.Error(t, err)
}

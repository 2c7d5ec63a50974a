package sparql

import (
	"fmt"
	"strings"
)

// ResponseFormat selects the representation requested from the endpoint.
type ResponseFormat int

// Known response formats. Only FormatJSON is understood by the results
// parser; FormatRaw asks for whatever the endpoint prefers and is meant to
// be printed as-is.
const (
	FormatJSON ResponseFormat = iota
	FormatRaw
)

// Media types used in request headers.
const (
	MediaSPARQLResultsJSON = "application/sparql-results+json"
	MediaSPARQLQuery       = "application/sparql-query"
)

// Accept returns the Accept header value for the format.
func (f ResponseFormat) Accept() string {
	switch f {
	case FormatRaw:
		return "*/*"
	default:
		return MediaSPARQLResultsJSON
	}
}

func (f ResponseFormat) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatRaw:
		return "raw"
	default:
		return fmt.Sprintf("ResponseFormat(%d)", int(f))
	}
}

// ParseResponseFormat converts "json" or "raw" to a ResponseFormat.
func ParseResponseFormat(s string) (ResponseFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "raw":
		return FormatRaw, nil
	}
	return FormatJSON, fmt.Errorf("unknown response format %q", s)
}

// Method is the SPARQL protocol operation used to submit a query.
type Method string

// Supported submission methods.
const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

// ParseMethod converts "get" or "post" (any case) to a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "GET":
		return MethodGet, nil
	case "POST":
		return MethodPost, nil
	}
	return MethodGet, fmt.Errorf("unknown method %q, want get or post", s)
}

package sparql

import (
	"fmt"
	"unicode/utf8"
)

// maxBodySnippet bounds how much of an error body is shown in messages.
const maxBodySnippet = 512

// NetworkError indicates the request never produced an HTTP response:
// connection failure, timeout or cancellation.
type NetworkError struct {
	Endpoint string
	Cause    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// HTTPStatusError indicates the endpoint answered with a status >= 400.
// Body holds the complete response body.
type HTTPStatusError struct {
	Endpoint   string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPStatusError) Error() string {
	msg := fmt.Sprintf("endpoint %s returned HTTP %d", e.Endpoint, e.StatusCode)
	if s := e.Snippet(); s != "" {
		msg += ": " + s
	}
	return msg
}

// Snippet returns at most maxBodySnippet bytes of the body, cut on a rune
// boundary.
func (e *HTTPStatusError) Snippet() string {
	b := e.Body
	if len(b) > maxBodySnippet {
		b = b[:maxBodySnippet]
		for len(b) > 0 && !utf8.Valid(b) {
			b = b[:len(b)-1]
		}
		return string(b) + "..."
	}
	return string(b)
}

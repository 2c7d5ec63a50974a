package sparql

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoint identifies a SPARQL query service. The zero value is not usable;
// construct one with ParseEndpoint.
type Endpoint struct {
	raw string
}

// ParseEndpoint validates raw as an absolute http or https URL.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, fmt.Errorf("endpoint URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parsing endpoint URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Endpoint{}, fmt.Errorf("endpoint URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return Endpoint{}, fmt.Errorf("endpoint URL %q has no host", raw)
	}
	return Endpoint{raw: u.String()}, nil
}

// String returns the endpoint URL.
func (e Endpoint) String() string { return e.raw }

// IsZero reports whether e was never parsed.
func (e Endpoint) IsZero() bool { return e.raw == "" }

// Host returns the host[:port] of the endpoint, for logging.
func (e Endpoint) Host() string {
	u, err := url.Parse(e.raw)
	if err != nil {
		return ""
	}
	return u.Host
}

package results

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// MalformedResultError reports a response body that is not a well-formed
// SPARQL JSON results document.
type MalformedResultError struct {
	Reason string
	Cause  error
}

func (e *MalformedResultError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed SPARQL result: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("malformed SPARQL result: %s", e.Reason)
}

func (e *MalformedResultError) Unwrap() error { return e.Cause }

func malformed(reason string, args ...any) *MalformedResultError {
	return &MalformedResultError{Reason: fmt.Sprintf(reason, args...)}
}

// Parse decodes a SELECT result document. The head, head.vars, results and
// results.bindings members are required, every value descriptor needs a
// type (an empty value is a legal empty literal), and every bound variable
// must be listed in head.vars. An empty bindings array yields an empty
// ResultSet.
func Parse(raw []byte) (*ResultSet, error) {
	doc, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if doc.Results == nil && doc.Boolean != nil {
		return nil, malformed("boolean result where bindings were expected")
	}
	if doc.Head.Vars == nil {
		return nil, malformed("missing head.vars")
	}
	if doc.Results == nil {
		return nil, malformed("missing results")
	}
	if doc.Results.Bindings == nil {
		return nil, malformed("missing results.bindings")
	}

	declared := make(map[string]bool, len(doc.Head.Vars))
	for _, v := range doc.Head.Vars {
		if declared[v] {
			return nil, malformed("duplicate variable %q in head.vars", v)
		}
		declared[v] = true
	}

	rs := &ResultSet{
		Vars: append([]string{}, doc.Head.Vars...),
		Rows: make([]BindingRow, 0, len(doc.Results.Bindings)),
	}
	for i, binding := range doc.Results.Bindings {
		if binding == nil {
			return nil, malformed("binding %d is null", i)
		}
		row := make(BindingRow, len(binding))
		for name, val := range binding {
			if !declared[name] {
				return nil, malformed("binding %d: variable %q not in head.vars", i, name)
			}
			if val == nil || val.Type == "" {
				return nil, malformed("binding %d: variable %q has no type", i, name)
			}
			row[name] = *val
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs, nil
}

// IsBoolean reports whether raw looks like an ASK result document: a JSON
// object with a boolean member and no results member. It does not validate
// the rest of the document.
func IsBoolean(raw []byte) bool {
	var probe struct {
		Boolean *bool           `json:"boolean"`
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(raw), &probe); err != nil {
		return false
	}
	return probe.Boolean != nil && probe.Results == nil
}

// ParseBoolean decodes an ASK result document.
func ParseBoolean(raw []byte) (bool, error) {
	doc, err := decode(raw)
	if err != nil {
		return false, err
	}
	if doc.Boolean == nil {
		return false, malformed("missing boolean")
	}
	return *doc.Boolean, nil
}

func decode(raw []byte) (*document, error) {
	if !utf8.Valid(raw) {
		return nil, malformed("body is not valid UTF-8")
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, malformed("empty body")
	}

	var doc document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &MalformedResultError{Reason: "unexpected JSON shape", Cause: err}
		}
		return nil, &MalformedResultError{Reason: "invalid JSON", Cause: err}
	}
	if doc.Head == nil {
		return nil, malformed("missing head")
	}
	return &doc, nil
}

// Package render turns parsed SPARQL results into output text.
package render

import (
	"fmt"
	"strings"

	"github.com/gertd/go-pluralize"

	"github.com/sydlexius/quarry/internal/results"
)

// NoResultsText is printed by text renderers for an empty result set.
const NoResultsText = "No results found."

// Renderer converts a result set into its final output. Every renderer
// produces a distinct no-results output for an empty result set.
type Renderer interface {
	Render(rs *results.ResultSet) (string, error)
}

// BooleanRenderer is implemented by renderers that can print the answer to
// an ASK query.
type BooleanRenderer interface {
	RenderBoolean(answer bool) (string, error)
}

// BooleanText is the word printed for an ASK answer.
func BooleanText(answer bool) string {
	if answer {
		return "yes"
	}
	return "no"
}

// Boolean renders an ASK answer with r, or as a plain line when r has no
// boolean form.
func Boolean(r Renderer, answer bool) (string, error) {
	if br, ok := r.(BooleanRenderer); ok {
		return br.RenderBoolean(answer)
	}
	return BooleanText(answer) + "\n", nil
}

// Format names accepted by New.
const (
	FormatText      = "text"
	FormatHTML      = "html"
	FormatHTMLTable = "html-table"
	FormatTable     = "table"
)

// Formats lists the names accepted by New.
func Formats() []string {
	return []string{FormatText, FormatHTML, FormatHTMLTable, FormatTable}
}

// Options carries the settings shared by the renderers. Each renderer uses
// the fields that apply to it.
type Options struct {
	Var     string // primary variable (text), link text (html, html-table)
	HrefVar string // link target (html, html-table)
	Title   string // page heading (html, html-table)
	Style   string // table style (table)
}

// New returns the renderer registered under name.
func New(name string, opts Options) (Renderer, error) {
	switch strings.ToLower(name) {
	case FormatText, "":
		return &PlainText{Var: opts.Var}, nil
	case FormatHTML:
		return &HTMLLink{Title: opts.Title, TextVar: opts.Var, HrefVar: opts.HrefVar}, nil
	case FormatHTMLTable:
		return &HTMLTable{Title: opts.Title, LinkVar: opts.Var, HrefVar: opts.HrefVar}, nil
	case FormatTable:
		return &TextTable{Style: opts.Style}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (want one of %s)", name, strings.Join(Formats(), ", "))
}

var plural = pluralize.NewClient()

// Summary returns a short count such as "1 result" or "3 results".
func Summary(rs *results.ResultSet) string {
	return plural.Pluralize("result", rs.Len(), true)
}

// requireVar returns name, or the first header variable when name is
// empty, and fails if the variable is not in the header.
func requireVar(rs *results.ResultSet, name string) (string, error) {
	if name == "" {
		if len(rs.Vars) == 0 {
			return "", fmt.Errorf("result has no variables")
		}
		return rs.Vars[0], nil
	}
	if !rs.HasVar(name) {
		return "", fmt.Errorf("variable %q is not in the result header (%s)", name, strings.Join(rs.Vars, ", "))
	}
	return name, nil
}

package query

import (
	"fmt"
	"sort"
	"strings"
)

// UnknownPlaceholderError is returned by Render on a strict Template when a
// substitution key does not occur in the template text.
type UnknownPlaceholderError struct {
	Keys []string
}

func (e *UnknownPlaceholderError) Error() string {
	return fmt.Sprintf("unknown placeholder(s): %s", strings.Join(e.Keys, ", "))
}

// Option configures a Template.
type Option func(*Template)

// Strict makes Render fail with *UnknownPlaceholderError when a substitution
// key does not appear in the template. Without it, unknown keys are ignored.
func Strict() Option {
	return func(t *Template) { t.strict = true }
}

// Template is a SPARQL query with named placeholder tokens, such as
// DIR1-NAME, that sit inside string literals. A Template is immutable.
type Template struct {
	text   string
	strict bool
}

// New creates a Template from the raw query text.
func New(text string, opts ...Option) *Template {
	t := &Template{text: text}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Text returns the unrendered template text.
func (t *Template) Text() string { return t.text }

// IsStrict reports whether unknown keys make Render fail.
func (t *Template) IsStrict() bool { return t.strict }

// Placeholders returns the keys of subs that occur in the template, sorted.
func (t *Template) Placeholders(subs map[string]string) []string {
	var found []string
	for k := range subs {
		if k != "" && strings.Contains(t.text, k) {
			found = append(found, k)
		}
	}
	sort.Strings(found)
	return found
}

// Unknown returns the keys of subs that do not occur in the template, sorted.
func (t *Template) Unknown(subs map[string]string) []string {
	var missing []string
	for k := range subs {
		if k == "" || !strings.Contains(t.text, k) {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return missing
}

// Render replaces every occurrence of each key in subs with the escaped
// value. Values are escaped with EscapeLiteral, so a placeholder must sit
// inside a quoted string literal in the template. Longer keys are matched
// first and inserted values are never scanned for further tokens.
//
// Keys that do not occur in the template are ignored unless the Template
// was created with Strict, in which case an *UnknownPlaceholderError listing
// all of them is returned and nothing is rendered.
func (t *Template) Render(subs map[string]string) (string, error) {
	if unknown := t.Unknown(subs); len(unknown) > 0 && t.strict {
		return "", &UnknownPlaceholderError{Keys: unknown}
	}

	keys := t.Placeholders(subs)
	if len(keys) == 0 {
		return t.text, nil
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return len(keys[i]) > len(keys[j])
	})

	// strings.NewReplacer picks the first matching pair at each position
	// and does not revisit replaced text.
	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, EscapeLiteral(subs[k]))
	}
	return strings.NewReplacer(pairs...).Replace(t.text), nil
}

// EscapeLiteral escapes s for use inside a SPARQL string literal delimited by
// either single or double quotes, using the ECHAR escapes of the SPARQL
// grammar. The result never terminates the enclosing literal.
func EscapeLiteral(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

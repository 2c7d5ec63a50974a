package query

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/titanous/json5"
)

const tagPrefix = "# tag:"

// Bank holds several named queries loaded from one file. Each query is
// introduced by a "# tag: <name>" comment line and runs until the next tag
// or the end of the file. Comment lines above a tag belong to the
// following query.
type Bank map[string]string

// LoadBank parses a query bank. Text before the first tag is discarded.
func LoadBank(r io.Reader) (Bank, error) {
	bank := make(Bank)
	var (
		name    string
		pending []string
		body    []string
	)

	flush := func() error {
		if name == "" {
			return nil
		}
		if _, dup := bank[name]; dup {
			return fmt.Errorf("duplicate query tag %q", name)
		}
		bank[name] = strings.TrimSpace(strings.Join(body, "\n")) + "\n"
		return nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, tagPrefix) {
			if err := flush(); err != nil {
				return nil, err
			}
			name = strings.TrimSpace(strings.TrimPrefix(trimmed, tagPrefix))
			if name == "" {
				return nil, fmt.Errorf("empty query tag")
			}
			body = append([]string(nil), pending...)
			pending = nil
			continue
		}

		// Leading comments are held back until we know whether they
		// introduce the next tagged query.
		if strings.HasPrefix(trimmed, "#") {
			pending = append(pending, line)
			continue
		}
		if name != "" {
			body = append(body, pending...)
			body = append(body, line)
		}
		pending = nil
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading query bank: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(bank) == 0 {
		return nil, fmt.Errorf("query bank contains no tagged queries")
	}
	return bank, nil
}

// LoadBankFile opens and parses a query bank file.
func LoadBankFile(path string) (Bank, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("opening query bank: %w", err)
	}
	defer f.Close() //nolint:errcheck
	return LoadBank(f)
}

// Names returns the query tags in sorted order.
func (b Bank) Names() []string {
	names := make([]string, 0, len(b))
	for n := range b {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Template returns the query tagged name as a Template.
func (b Bank) Template(name string, opts ...Option) (*Template, error) {
	text, ok := b[name]
	if !ok {
		return nil, fmt.Errorf("query %q not found in bank", name)
	}
	return New(text, opts...), nil
}

// LoadVars reads a JSON5 document mapping placeholder tokens to values.
// Non-string scalars are converted with their JSON text form.
func LoadVars(path string) (map[string]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("reading vars file: %w", err)
	}

	var raw map[string]any
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing vars file: %w", err)
	}

	vars := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			vars[k] = val
		case float64, bool:
			vars[k] = fmt.Sprint(val)
		case nil:
			vars[k] = ""
		default:
			return nil, fmt.Errorf("vars file: value for %q must be a scalar", k)
		}
	}
	return vars, nil
}

// ParseVar splits a KEY=value pair as given on the command line.
func ParseVar(s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid substitution %q, want KEY=value", s)
	}
	return key, value, nil
}

package render

import (
	"strings"

	"github.com/sydlexius/quarry/internal/results"
)

// PlainText prints the value of one variable per row, one per line, in
// result order. Rows where the variable is unbound print an empty line.
type PlainText struct {
	// Var is the primary variable. Empty means the first header variable.
	Var string
	// NoResults replaces NoResultsText for an empty result set.
	NoResults string
}

// Render implements Renderer.
func (p *PlainText) Render(rs *results.ResultSet) (string, error) {
	if rs.Empty() {
		msg := p.NoResults
		if msg == "" {
			msg = NoResultsText
		}
		return msg + "\n", nil
	}

	name, err := requireVar(rs, p.Var)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, v := range rs.Column(name) {
		b.WriteString(v)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// RenderBoolean implements BooleanRenderer.
func (p *PlainText) RenderBoolean(answer bool) (string, error) {
	return BooleanText(answer) + "\n", nil
}

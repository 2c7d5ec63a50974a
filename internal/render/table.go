package render

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sydlexius/quarry/internal/results"
)

// Table styles accepted by TextTable.
const (
	StyleLight   = "light"
	StyleRounded = "rounded"
	StyleDouble  = "double"
	StyleASCII   = "ascii"
)

// TextTable renders every header variable as a column of a box-drawn
// terminal table, with a footer counting the rows.
type TextTable struct {
	Style string
}

// Render implements Renderer.
func (t *TextTable) Render(rs *results.ResultSet) (string, error) {
	if rs.Empty() {
		return NoResultsText + "\n", nil
	}
	if len(rs.Vars) == 0 {
		return "", fmt.Errorf("result has no variables")
	}
	style, err := tableStyle(t.Style)
	if err != nil {
		return "", err
	}

	tw := table.NewWriter()
	tw.SetStyle(style)

	header := make(table.Row, len(rs.Vars))
	for i, v := range rs.Vars {
		header[i] = v
	}
	tw.AppendHeader(header)

	for _, row := range rs.Rows {
		r := make(table.Row, len(rs.Vars))
		for i, v := range rs.Vars {
			val, _ := row.Get(v)
			r[i] = val
		}
		tw.AppendRow(r)
	}

	footer := make(table.Row, len(rs.Vars))
	footer[0] = Summary(rs)
	for i := 1; i < len(footer); i++ {
		footer[i] = ""
	}
	tw.AppendFooter(footer)

	return tw.Render() + "\n", nil
}

func tableStyle(name string) (table.Style, error) {
	switch strings.ToLower(name) {
	case "", StyleLight:
		return table.StyleLight, nil
	case StyleRounded:
		return table.StyleRounded, nil
	case StyleDouble:
		return table.StyleDouble, nil
	case StyleASCII:
		return table.StyleDefault, nil
	}
	return table.Style{}, fmt.Errorf("unknown table style %q", name)
}

// RenderBoolean implements BooleanRenderer with a one-cell table.
func (t *TextTable) RenderBoolean(answer bool) (string, error) {
	style, err := tableStyle(t.Style)
	if err != nil {
		return "", err
	}
	tw := table.NewWriter()
	tw.SetStyle(style)
	tw.AppendHeader(table.Row{"ask"})
	tw.AppendRow(table.Row{BooleanText(answer)})
	return tw.Render() + "\n", nil
}

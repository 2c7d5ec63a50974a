package render

import (
	"bytes"
	"context"

	"github.com/a-h/templ"

	"github.com/sydlexius/quarry/internal/results"
)

//go:generate templ generate

const defaultTitle = "results"

// link is one piece of rendered text, optionally linked. Hrefs pass through
// templ.URL, which replaces unsafe schemes such as javascript:.
type link struct {
	Text   string
	Href   string
	Linked bool
}

// HTMLLink renders a minimal HTML page with a heading and one paragraph per
// row, linking the TextVar value to the HrefVar value. Values are escaped
// and link targets with unsafe schemes are neutralized.
type HTMLLink struct {
	Title   string
	TextVar string
	HrefVar string
}

// Render implements Renderer.
func (h *HTMLLink) Render(rs *results.ResultSet) (string, error) {
	if rs.Empty() {
		return renderPage(h.Title, paragraph(NoResultsText))
	}
	textVar, err := requireVar(rs, h.TextVar)
	if err != nil {
		return "", err
	}
	hrefVar := h.HrefVar
	if hrefVar == "" && len(rs.Vars) > 1 {
		hrefVar = rs.Vars[1]
	}
	if hrefVar, err = requireVar(rs, hrefVar); err != nil {
		return "", err
	}

	links := make([]link, 0, rs.Len())
	for _, row := range rs.Rows {
		text, _ := row.Get(textVar)
		href, ok := row.Get(hrefVar)
		links = append(links, link{Text: text, Href: href, Linked: ok})
	}
	return renderPage(h.Title, linkParagraphs(links))
}

// RenderBoolean implements BooleanRenderer.
func (h *HTMLLink) RenderBoolean(answer bool) (string, error) {
	return renderPage(h.Title, paragraph(BooleanText(answer)))
}

// Column is one column of an HTMLTable. When HrefVar is set the cell text
// links to that variable's value.
type Column struct {
	Header  string
	Var     string
	HrefVar string
}

// HTMLTable renders the result set as an HTML table.
//
// Explicit Columns are rendered as given. Otherwise every header variable
// gets a column and IRI values link to themselves; when LinkVar is set its
// column links to HrefVar instead and the HrefVar column is left out, so a
// name can link to a homepage next to a plain description column.
type HTMLTable struct {
	Title   string
	Columns []Column
	LinkVar string
	HrefVar string
}

// Render implements Renderer.
func (h *HTMLTable) Render(rs *results.ResultSet) (string, error) {
	if rs.Empty() {
		return renderPage(h.Title, paragraph(NoResultsText))
	}
	cols, err := h.columns(rs)
	if err != nil {
		return "", err
	}
	autoLink := len(h.Columns) == 0

	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Header
	}
	rows := make([][]link, 0, rs.Len())
	for _, row := range rs.Rows {
		cells := make([]link, len(cols))
		for i, c := range cols {
			val, bound := row[c.Var]
			cells[i] = link{Text: val.Value}
			switch {
			case !bound:
			case c.HrefVar != "":
				cells[i].Href, cells[i].Linked = row.Get(c.HrefVar)
			case autoLink && val.IsURI():
				cells[i].Href, cells[i].Linked = val.Value, true
			}
		}
		rows = append(rows, cells)
	}
	return renderPage(h.Title, resultTable(headers, rows))
}

// RenderBoolean implements BooleanRenderer.
func (h *HTMLTable) RenderBoolean(answer bool) (string, error) {
	return renderPage(h.Title, paragraph(BooleanText(answer)))
}

func (h *HTMLTable) columns(rs *results.ResultSet) ([]Column, error) {
	cols := h.Columns
	if len(cols) == 0 {
		linkVar, hrefVar := h.LinkVar, h.HrefVar
		if linkVar == "" && hrefVar != "" && len(rs.Vars) > 0 {
			linkVar = rs.Vars[0]
		}
		if linkVar != "" {
			if _, err := requireVar(rs, linkVar); err != nil {
				return nil, err
			}
		}
		for _, v := range rs.Vars {
			switch {
			case v == linkVar:
				cols = append(cols, Column{Header: v, Var: v, HrefVar: hrefVar})
			case v == hrefVar && linkVar != "":
			default:
				cols = append(cols, Column{Header: v, Var: v})
			}
		}
	}
	for _, c := range cols {
		if _, err := requireVar(rs, c.Var); err != nil {
			return nil, err
		}
		if c.HrefVar != "" {
			if _, err := requireVar(rs, c.HrefVar); err != nil {
				return nil, err
			}
		}
	}
	return cols, nil
}

func renderPage(title string, body templ.Component) (string, error) {
	if title == "" {
		title = defaultTitle
	}
	var buf bytes.Buffer
	if err := page(title, body).Render(context.Background(), &buf); err != nil {
		return "", err
	}
	buf.WriteByte('\n')
	return buf.String(), nil
}

package history

import (
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

// WriteTable prints runs as a text table, newest first as given.
func WriteTable(w io.Writer, runs []Run, now time.Time) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"ID", "When", "Endpoint", "Query", "Status", "Rows", "Size", "Took"})
	for _, r := range runs {
		status := r.Status
		if r.HTTPStatus != 0 {
			status += " (" + strconv.Itoa(r.HTTPStatus) + ")"
		}
		tw.AppendRow(table.Row{
			r.ID,
			humanize.RelTime(r.StartedAt, now, "ago", "from now"),
			r.Endpoint,
			r.QueryHash,
			status,
			r.RowCount,
			humanize.Bytes(uint64(r.Bytes)),
			r.Duration.Round(time.Millisecond).String(),
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "", len(runs), "", ""})
	tw.Render()
}

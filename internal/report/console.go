package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// Print renders t as a bordered console table under a coloured title.
func Print(w io.Writer, t Table) {
	if t.Title != "" {
		fmt.Fprintln(w)
		color.New(color.FgYellow, color.Bold).Fprintln(w, t.Title)
	}
	if len(t.Rows) == 0 {
		fmt.Fprintln(w, "  (no rows)")
		return
	}
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(t.Header)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.AppendBulk(t.Rows)
	tw.Render()
}

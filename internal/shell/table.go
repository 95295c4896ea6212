package shell

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/snowflake-labs/segment"
)

// WriteAttributes renders attribute definitions as a table.
func WriteAttributes(w io.Writer, defs []segment.AttributeDefinition) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Key", "Label", "Type", "Class", "Category"})
	for _, d := range defs {
		t.AppendRow(table.Row{d.Key(), d.Label, d.DataType, segment.ClassifyType(d.DataType), d.Category})
	}
	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d attributes", len(defs))})
	t.Render()
}

// WriteRows renders sampled rows as a table, with columns in name order.
func WriteRows(w io.Writer, rows []map[string]any) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(no rows)")
		return
	}

	cols := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	header := make(table.Row, len(cols))
	for n, col := range cols {
		header[n] = col
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(cols))
		for n, col := range cols {
			if row[col] == nil {
				r[n] = "NULL"
				continue
			}
			r[n] = row[col]
		}
		t.AppendRow(r)
	}
	t.Render()
}

package main

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. Numeric columns are right aligned.
type column struct {
	title   string
	numeric bool
}

var (
	recordingColumns = []column{
		{title: "Session"},
		{title: "Started"},
		{title: "Duration", numeric: true},
		{title: "Frames", numeric: true},
		{title: "Result"},
	}
	historyColumns = []column{
		{title: "ID", numeric: true},
		{title: "Drive"},
		{title: "Session"},
		{title: "Started"},
		{title: "Frames", numeric: true},
		{title: "Result"},
	}
)

// writeTable renders rows under cols followed by a newline. Short rows are
// padded with empty cells.
func writeTable(w io.Writer, cols []column, rows [][]string) {
	if len(cols) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, col := range cols {
		header[i] = col.title
		align := text.AlignLeft
		if col.numeric {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(cols))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	tw.Render()
}

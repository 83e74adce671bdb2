package main

import (
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderTable renders rows under headers; columns listed in rightAligned
// (zero-based) are right aligned. Short rows are padded with blanks.
func renderTable(headers []string, rows [][]string, rightAligned ...int) string {
	if len(headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers, len(headers)))
	for _, row := range rows {
		tw.AppendRow(toRow(row, len(headers)))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if slices.Contains(rightAligned, i) {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func toRow(values []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		if i < len(values) {
			row[i] = values[i]
		}
	}
	return row
}

// renderFields renders label/value pairs as a headerless two-column table.
func renderFields(fields [][2]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.SeparateRows = false
	for _, f := range fields {
		tw.AppendRow(table.Row{f[0], f[1]})
	}
	return tw.Render()
}

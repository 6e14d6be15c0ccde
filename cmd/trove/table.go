package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderIndexTable renders the single-row index summary shared by the status
// and stats commands. Numeric columns are right-aligned.
func renderIndexTable(files int64, totalBytes int64, lastIndexed string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Files", "Total Size", "Last Indexed"})
	tw.AppendRow(table.Row{
		fmt.Sprintf("%d", files),
		humanize.Bytes(uint64(totalBytes)),
		lastIndexed,
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/lazygrain/internal/observability"
)

// printStatsTable renders a run's PipelineStats as a go-pretty table,
// following the teacher's go-pretty conventions (StyleLight, no borders).
func printStatsTable(w io.Writer, label string, stats observability.PipelineStats, elapsed time.Duration) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false

	tbl.AppendHeader(table.Row{"metric", "value"})
	tbl.AppendRow(table.Row{"elements", humanize.Comma(stats.Elements)})
	tbl.AppendRow(table.Row{"batches", stats.Batches})
	tbl.AppendRow(table.Row{"bins filled", humanize.Comma(stats.BinsFilled)})
	tbl.AppendRow(table.Row{"bins spilled", humanize.Comma(stats.BinsSpilled)})
	tbl.AppendRow(table.Row{"elapsed", elapsed.Round(time.Millisecond)})

	if elapsed > 0 {
		rate := float64(stats.Elements) / elapsed.Seconds()
		tbl.AppendRow(table.Row{"elements/sec", fmt.Sprintf("%.1f", rate)})
	}

	tbl.AppendFooter(table.Row{"run", label})

	tbl.Render()
}

// statusLine prints a colored one-line status message, matching the
// teacher's cmd/*/commands pattern of color.New(...).Fprintf(os.Stdout, ...).
func statusLine(w io.Writer, c *color.Color, format string, args ...any) {
	c.Fprintf(w, format+"\n", args...)
}

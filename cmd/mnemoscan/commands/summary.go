package commands

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/mnemoscan/internal/scan"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/progress"
)

// renderSummary writes the end-of-scan report.
func renderSummary(w io.Writer, s scan.Summary) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	tbl.AppendHeader(table.Row{"Scan", statusText(s.Status)})
	tbl.AppendRow(table.Row{"Input", s.Input})
	tbl.AppendRow(table.Row{"Output", s.Output})

	if s.Total > 0 {
		tbl.AppendRow(table.Row{"Total lines", humanize.Comma(s.Total)})
	}

	tbl.AppendRow(table.Row{"Processed", humanize.Comma(s.Processed)})
	tbl.AppendRow(table.Row{"Valid", humanize.Comma(s.Valid)})

	if s.Resumed {
		tbl.AppendRow(table.Row{"Resumed after line", fmt.Sprintf("%s (%s)", humanize.Comma(s.ResumedFrom), s.SeekMode)})
		tbl.AppendRow(table.Row{"This run", fmt.Sprintf("%s processed, %s valid",
			humanize.Comma(s.RunProcessed), humanize.Comma(s.RunValid))})
	}

	tbl.AppendRow(table.Row{"Elapsed", progress.FormatDuration(s.Elapsed)})
	tbl.AppendRow(table.Row{"Speed", progress.FormatSpeed(s.Speed())})
	tbl.AppendRow(table.Row{"Checkpoints", s.Checkpoints})

	_, err := fmt.Fprintln(w, tbl.Render())
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}

func statusText(status scan.Status) string {
	switch status {
	case scan.StatusCompleted:
		return color.GreenString(string(status))
	case scan.StatusInterrupted:
		return color.YellowString(string(status))
	default:
		return color.RedString(string(status))
	}
}

/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package batch

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// newReportTable creates the markdown table writer for batch reports.
// Rows hold short status tokens and env var names, so no wrapping or
// width capping is needed.
func newReportTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

// WriteReport renders the per-example table followed by the summary
// token line. The final line is stable and grep-able by CI.
func WriteReport(w io.Writer, runID string, records []Record, sum Summary) error {
	fmt.Fprintf(w, "run %s: %d example(s)\n\n", runID, len(records))

	table := newReportTable([]string{"Example", "Status", "Detail"}, w)
	for _, r := range records {
		detail := ""
		if r.Status == StatusSkip {
			detail = r.SkipReason
		}
		if err := table.Append([]string{r.Name, string(r.Status), detail}); err != nil {
			return fmt.Errorf("appending report row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering report table: %w", err)
	}

	fmt.Fprintf(w, "\n%s\n", sum)
	return nil
}

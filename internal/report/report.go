// Package report renders a human-readable summary of a pipeline run.
package report

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/calderdata/shopcrawl/internal/load"
)

// Summary is the outcome of one pipeline run.
type Summary struct {
	StartedAt time.Time
	Duration  time.Duration
	Loaded    []load.Result
	Failures  []Failure
}

// Failure records one dataset that could not be loaded.
type Failure struct {
	Table string
	Err   error
}

// Render writes the run summary as a table.
func Render(w io.Writer, s Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("pipeline run %s", s.StartedAt.Format(time.RFC3339))

	t.AppendHeader(table.Row{"table", "rows", "columns", "status"})
	totalRows := 0
	for _, r := range s.Loaded {
		t.AppendRow(table.Row{r.Table, r.Rows, len(r.Columns), "loaded"})
		totalRows += r.Rows
	}
	for _, f := range s.Failures {
		t.AppendRow(table.Row{f.Table, "-", "-", text.FgRed.Sprintf("failed: %v", f.Err)})
	}
	t.AppendFooter(table.Row{"total", totalRows, "", s.Duration.Round(time.Millisecond)})
	t.Render()
}

package report

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calderdata/shopcrawl/internal/load"
)

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, Summary{
		StartedAt: time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC),
		Duration:  90 * time.Second,
		Loaded: []load.Result{
			{Table: "customers", Rows: 1000, Columns: make([]string, 12)},
			{Table: "competitor_products", Rows: 45, Columns: make([]string, 7)},
		},
		Failures: []Failure{
			{Table: "weather_data", Err: errors.New("row count mismatch")},
		},
	})

	out := buf.String()
	require.Contains(t, out, "customers")
	require.Contains(t, out, "1000")
	require.Contains(t, out, "competitor_products")
	require.Contains(t, out, "row count mismatch")
	require.Contains(t, out, "1045", "footer totals loaded rows")
}

package load

import (
	"strings"

	"github.com/araddon/dateparse"

	"github.com/calderdata/shopcrawl/internal/dataset"
)

var dateTokens = []string{"date", "time", "timestamp", "_at"}

// coerceDateColumns rewrites date-like text columns into time.Time cells.
// Coercion is all-or-nothing per column: if any non-empty cell fails to
// parse the column keeps its original text.
func coerceDateColumns(ds *dataset.Dataset) {
	for i, col := range ds.Columns {
		if !dateLikeColumn(col) {
			continue
		}
		coerceColumn(ds, i)
	}
}

func dateLikeColumn(name string) bool {
	for _, token := range dateTokens {
		if strings.Contains(name, token) {
			return true
		}
	}
	return false
}

func coerceColumn(ds *dataset.Dataset, col int) {
	parsed := make(map[int]any, len(ds.Rows))
	sawText := false
	for r, row := range ds.Rows {
		s, ok := row[col].(string)
		if !ok {
			continue
		}
		sawText = true
		if strings.TrimSpace(s) == "" {
			parsed[r] = nil
			continue
		}
		t, err := dateparse.ParseAny(s)
		if err != nil {
			return
		}
		parsed[r] = t.UTC()
	}
	if !sawText {
		return
	}
	for r, v := range parsed {
		ds.Rows[r][col] = v
	}
}

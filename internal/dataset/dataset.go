// Package dataset holds the in-memory tabular representation shared by the
// crawl accumulator, the file writers, and the database loader.
package dataset

import (
	"fmt"
	"strings"
	"time"
)

// Dataset is an ordered set of named columns and rows. Cell values are one of
// string, int, int64, float64, bool, or time.Time; nil marks a missing value.
type Dataset struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// New creates an empty dataset with the given column order.
func New(name string, columns ...string) *Dataset {
	return &Dataset{
		Name:    name,
		Columns: append([]string(nil), columns...),
	}
}

// Append adds one row. The value count must match the column count.
func (d *Dataset) Append(values ...any) error {
	if len(values) != len(d.Columns) {
		return fmt.Errorf("dataset %s: row has %d values, want %d", d.Name, len(values), len(d.Columns))
	}
	d.Rows = append(d.Rows, values)
	return nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// NormalizeColumns lowercases column names and collapses spaces and hyphens
// into single underscores.
func (d *Dataset) NormalizeColumns() {
	for i, col := range d.Columns {
		d.Columns[i] = NormalizeIdentifier(col)
	}
}

// DropEmptyRows removes rows whose every cell is nil or blank text.
func (d *Dataset) DropEmptyRows() int {
	kept := d.Rows[:0]
	dropped := 0
	for _, row := range d.Rows {
		if rowEmpty(row) {
			dropped++
			continue
		}
		kept = append(kept, row)
	}
	d.Rows = kept
	return dropped
}

func rowEmpty(row []any) bool {
	for _, cell := range row {
		switch v := cell.(type) {
		case nil:
		case string:
			if strings.TrimSpace(v) != "" {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// NormalizeIdentifier rewrites a column or table name into a lowercase
// underscore-separated identifier.
func NormalizeIdentifier(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastSep := false
	for _, r := range name {
		switch {
		case r == ' ' || r == '-' || r == '_':
			if !lastSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			lastSep = true
		default:
			b.WriteRune(r)
			lastSep = false
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// CellString renders a cell for CSV output.
func CellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case float64:
		return trimFloat(v)
	default:
		return fmt.Sprint(v)
	}
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.6f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadCSV loads a CSV file into a dataset named after the file. Cells that
// parse as integers or floats come back typed; everything else stays text.
func ReadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv %s has no header row", path)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ds := New(name, records[0]...)
	for _, record := range records[1:] {
		row := make([]any, len(ds.Columns))
		for i := range ds.Columns {
			if i < len(record) {
				row[i] = parseCell(record[i])
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

func parseCell(s string) any {
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteCSV writes the dataset to path, creating parent directories as needed.
func (d *Dataset) WriteCSV(path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(d.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(d.Columns))
	for _, row := range d.Rows {
		for i, cell := range row {
			record[i] = CellString(cell)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteJSON writes the dataset as an indented array of row objects.
func (d *Dataset) WriteJSON(path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")

	objects := make([]map[string]any, 0, len(d.Rows))
	for _, row := range d.Rows {
		obj := make(map[string]any, len(d.Columns))
		for i, col := range d.Columns {
			obj[col] = row[i]
		}
		objects = append(objects, obj)
	}
	if err := enc.Encode(objects); err != nil {
		return fmt.Errorf("encode json records: %w", err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// WriteArtifacts writes both CSV and JSON files named after the dataset
// under dir.
func (d *Dataset) WriteArtifacts(dir string) error {
	name := NormalizeIdentifier(d.Name)
	if err := d.WriteCSV(filepath.Join(dir, name+".csv")); err != nil {
		return err
	}
	return d.WriteJSON(filepath.Join(dir, name+".json"))
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

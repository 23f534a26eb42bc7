package tables

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// maxSheetName is the XLSX limit on sheet name length.
const maxSheetName = 31

// WriteCSV writes each table to <dir>/<name>.csv and returns the paths written.
// Rows are padded to the table width.
func WriteCSV(dir string, tables []Table) ([]string, error) {
	if len(tables) == 0 {
		return nil, ErrNoTables
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create table directory: %w", err)
	}

	paths := make([]string, 0, len(tables))
	var errs []error
	for _, t := range tables {
		path := filepath.Join(dir, t.Name+".csv")
		if err := writeCSVFile(path, t); err != nil {
			errs = append(errs, err)
			continue
		}
		paths = append(paths, path)
	}
	return paths, errors.Join(errs...)
}

func writeCSVFile(path string, t Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records(t)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteXLSX writes every table as a sheet of one workbook at path.
func WriteXLSX(path string, tables []Table) error {
	if len(tables) == 0 {
		return ErrNoTables
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create workbook directory: %w", err)
	}

	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	names := newNamer()
	for i, t := range tables {
		sheet := names.unique(sheetName(t.Name))
		if i == 0 {
			if err := book.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := book.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}

		for r, row := range records(t) {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := book.SetSheetRow(sheet, cell, &row); err != nil {
				return fmt.Errorf("write sheet %s row %d: %w", sheet, r+1, err)
			}
		}
	}

	if err := book.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// records returns the header row (if any) followed by rows padded to the table width.
func records(t Table) [][]string {
	width := t.Width()
	out := make([][]string, 0, len(t.Rows)+1)
	if len(t.Headers) > 0 {
		out = append(out, t.Headers)
	}
	for _, row := range t.Rows {
		padded := make([]string, width)
		copy(padded, row)
		out = append(out, padded)
	}
	return out
}

func sheetName(name string) string {
	r := []rune(name)
	if len(r) > maxSheetName-3 {
		r = r[:maxSheetName-3]
	}
	return string(r)
}

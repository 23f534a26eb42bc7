package sources

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Spreadsheet columns for source import (0-based).
const (
	colKind      = 0 // A: search | direct
	colName      = 1 // B
	colURL       = 2 // C: base_url for search sources, url for direct sources
	colTemplates = 3 // D: "|" separated, search only
	colEnabled   = 4 // E: optional, defaults to true

	minImportColumns = 3
	templateSep      = "|"
)

// ImportHeaders is the expected header row of a source import sheet.
var ImportHeaders = []string{"kind", "name", "url", "templates", "enabled"}

// ErrEmptySheet indicates the workbook has no data rows.
var ErrEmptySheet = errors.New("sheet has no data rows")

// ImportError describes a rejected spreadsheet row.
type ImportError struct {
	Row     int    `json:"row"`
	Message string `json:"error"`
}

func (e ImportError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ImportXLSX reads sources from the first sheet of an XLSX workbook. Row 1 is the
// header. Valid rows are returned in sheet order; invalid rows are reported
// individually and do not stop the import.
func ImportXLSX(r io.Reader) (File, []ImportError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return File{}, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return File{}, nil, ErrEmptySheet
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return File{}, nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return File{}, nil, ErrEmptySheet
	}

	var (
		out     File
		rowErrs []ImportError
	)
	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlankRow(row) {
			continue
		}
		if msg := appendRow(&out, row); msg != "" {
			rowErrs = append(rowErrs, ImportError{Row: rowNum, Message: msg})
		}
	}

	return out, rowErrs, nil
}

func appendRow(out *File, row []string) string {
	if len(row) < minImportColumns {
		return fmt.Sprintf("expected at least %d columns, got %d", minImportColumns, len(row))
	}

	name := cell(row, colName)
	rawURL := cell(row, colURL)
	if name == "" {
		return "name is required"
	}
	if err := validateURL(rawURL); err != nil {
		return "url: " + err.Error()
	}

	enabledFlag := true
	if v := cell(row, colEnabled); v != "" {
		parsed, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			return fmt.Sprintf("enabled: %q is not a boolean", v)
		}
		enabledFlag = parsed
	}

	switch Kind(strings.ToLower(cell(row, colKind))) {
	case KindSearch:
		templates := splitTemplates(cell(row, colTemplates))
		if len(templates) == 0 {
			return "templates are required for search sources"
		}
		out.Search = append(out.Search, SearchSpec{
			Name: name, BaseURL: rawURL, Templates: templates, Enabled: boolPtr(enabledFlag),
		})
	case KindDirect:
		out.Direct = append(out.Direct, DirectSpec{Name: name, URL: rawURL, Enabled: boolPtr(enabledFlag)})
	default:
		return fmt.Sprintf("kind must be %q or %q", KindSearch, KindDirect)
	}
	return ""
}

// ExportXLSX writes f as an import sheet so it can be edited and re-imported.
func ExportXLSX(w io.Writer, f File) error {
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	const sheet = "Sources"
	if err := book.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	rows := make([][]string, 0, f.Len()+1)
	rows = append(rows, ImportHeaders)
	for _, s := range f.Search {
		rows = append(rows, []string{
			string(KindSearch), s.Name, s.BaseURL, strings.Join(s.Templates, templateSep), strconv.FormatBool(enabled(s.Enabled)),
		})
	}
	for _, d := range f.Direct {
		rows = append(rows, []string{string(KindDirect), d.Name, d.URL, "", strconv.FormatBool(enabled(d.Enabled))})
	}

	for r, row := range rows {
		for c, val := range row {
			name, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := book.SetCellValue(sheet, name, val); err != nil {
				return fmt.Errorf("set cell %s: %w", name, err)
			}
		}
	}

	if err := book.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func splitTemplates(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, templateSep) {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

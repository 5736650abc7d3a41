package rows

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// LoadXLSX reads the first worksheet, using its first row as the header.
// Spreadsheets omit trailing empty cells, so short rows are accepted; a row
// with non-empty cells beyond the header width is malformed. Blank rows are
// skipped.
func LoadXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, &ParseError{Err: fmt.Errorf("workbook has no sheets")}
	}
	grid, err := f.GetRows(sheet)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("read sheet %q: %w", sheet, err)}
	}
	if len(grid) == 0 {
		return nil, &ParseError{Err: fmt.Errorf("missing header row")}
	}

	h := parseHeader(grid[0])
	if err := normalizeDates(f, sheet, h, grid); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("read sheet %q: %w", sheet, err)}
	}

	var out []Row
	for i, cells := range grid[1:] {
		line := i + 2
		if blank(cells) {
			continue
		}
		for j := len(h); j < len(cells); j++ {
			if strings.TrimSpace(cells[j]) != "" {
				return nil, &ParseError{Line: line, Err: fmt.Errorf("row has %d cells, header has %d", len(cells), len(h))}
			}
		}
		out = append(out, h.row(line, cells))
	}
	return out, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func isDateField(f Field) bool {
	return f == FieldDOB || f == FieldPolicyStartDate || f == FieldPolicyEndDate
}

// normalizeDates rewrites date-formatted numeric cells in date columns as
// 2006-01-02. GetRows renders them through their number format, which
// depends on the workbook and is not a layout the importer parses.
func normalizeDates(f *excelize.File, sheet string, h header, grid [][]string) error {
	var cols []int
	for i, field := range h {
		if field >= 0 && isDateField(field) {
			cols = append(cols, i)
		}
	}
	if len(cols) == 0 {
		return nil
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return err
	}
	props, err := f.GetWorkbookProps()
	if err != nil {
		return err
	}
	date1904 := props.Date1904 != nil && *props.Date1904

	for r := 1; r < len(grid) && r < len(raw); r++ {
		for _, c := range cols {
			if c >= len(grid[r]) || c >= len(raw[r]) {
				continue
			}
			serial, err := strconv.ParseFloat(strings.TrimSpace(raw[r][c]), 64)
			if err != nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if !hasDateFormat(f, sheet, cell) {
				continue
			}
			t, err := excelize.ExcelDateToTime(serial, date1904)
			if err != nil {
				continue
			}
			grid[r][c] = t.Format(time.DateOnly)
		}
	}
	return nil
}

// hasDateFormat reports whether cell's number format shows a calendar date.
// Cells whose style cannot be read are treated as plain numbers.
func hasDateFormat(f *excelize.File, sheet, cell string) bool {
	idx, err := f.GetCellStyle(sheet, cell)
	if err != nil {
		return false
	}
	style, err := f.GetStyle(idx)
	if err != nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt)
	}
	switch n := style.NumFmt; {
	case n >= 14 && n <= 17, n == 22, n >= 27 && n <= 36, n >= 50 && n <= 58:
		return true
	}
	return false
}

// isDateFormatCode reports whether a custom number format shows a day or a
// year, ignoring quoted literals and bracketed sections such as [$-409].
func isDateFormatCode(code string) bool {
	var quoted, bracket bool
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case bracket:
		case r == 'd' || r == 'y':
			return true
		}
	}
	return false
}

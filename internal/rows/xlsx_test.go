package rows

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vvka-141/polingest/pkg/polingest"
)

func buildWorkbook(t *testing.T, grid [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range grid {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoadXLSX(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"agent", "category_name", "email", "policy_number"},
		{"Alex", "Auto", "a@x.com", "P1"},
		{"", "", "", ""},
		{"Dana", "Home"},
	})

	got, err := LoadXLSX(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, got, 2, "blank row skipped")

	assert.Equal(t, 2, got[0].Line)
	assert.Equal(t, "P1", got[0].Get(FieldPolicyNumber))
	assert.Equal(t, 4, got[1].Line)
	assert.Equal(t, "Home", got[1].Get(FieldCategoryName))
	assert.Equal(t, "", got[1].Get(FieldEmail), "short row padded")
}

func TestLoadXLSX_DateCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"policy_number", "dob", "policy_start_date", "policy_end_date", "zip"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{
		"P1", time.Date(1990, 3, 4, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "2025-01-15", 75001,
	}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{
		12345, "", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), 45306,
	}))

	shortDate, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "B2", "C2", shortDate))
	dayFirst := `dd/mm/yyyy`
	custom, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dayFirst})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "C3", "C3", custom))
	general, err := f.NewStyle(&excelize.Style{NumFmt: 0})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "D3", "D3", general))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	got, err := LoadXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "1990-03-04", got[0].Get(FieldDOB))
	assert.Equal(t, "2024-01-15", got[0].Get(FieldPolicyStartDate))
	assert.Equal(t, "2025-01-15", got[0].Get(FieldPolicyEndDate), "text dates untouched")
	assert.Equal(t, "75001", got[0].Get(FieldZip), "non-date columns untouched")

	assert.Equal(t, "12345", got[1].Get(FieldPolicyNumber))
	assert.Equal(t, "2024-02-29", got[1].Get(FieldPolicyStartDate), "custom date format")
	assert.Equal(t, "45306", got[1].Get(FieldPolicyEndDate), "general-format numbers are not dates")
}

func TestIsDateFormatCode(t *testing.T) {
	tests := map[string]bool{
		"dd/mm/yyyy":         true,
		"yyyy-mm-dd hh:mm":   true,
		"[$-409]d-mmm-yy":    true,
		"hh:mm:ss":           false,
		"0.00":               false,
		`"day "0`:            false,
		"[Red]#,##0;[Blue]0": false,
	}
	for code, want := range tests {
		assert.Equal(t, want, isDateFormatCode(code), code)
	}
}

func TestLoadXLSX_TooWide(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"agent", "email"},
		{"Alex", "a@x.com", "stray"},
	})

	_, err := LoadXLSX(bytes.NewReader(data))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Line)
}

func TestLoadXLSX_NotAWorkbook(t *testing.T) {
	_, err := LoadXLSX(bytes.NewReader([]byte("agent,email\n")))
	assert.True(t, errors.Is(err, polingest.ErrParse))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "batch.CSV")
	require.NoError(t, os.WriteFile(csvPath, []byte("agent\nA\n"), 0644))
	got, err := LoadFile(csvPath)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	xlsxPath := filepath.Join(dir, "batch.xlsx")
	require.NoError(t, os.WriteFile(xlsxPath, buildWorkbook(t, [][]interface{}{{"agent"}, {"B"}}), 0644))
	got, err = LoadFile(xlsxPath)
	require.NoError(t, err)
	assert.Equal(t, "B", got[0].Get(FieldAgent))

	_, err = LoadFile(filepath.Join(dir, "batch.json"))
	assert.True(t, errors.Is(err, polingest.ErrUnsupportedFormat))

	_, err = LoadFile(filepath.Join(dir, "missing.csv"))
	assert.True(t, errors.Is(err, polingest.ErrParse))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFields(t *testing.T) {
	assert.Len(t, Fields(), 17)
	f, ok := LookupField("Policy_Number")
	assert.True(t, ok)
	assert.Equal(t, FieldPolicyNumber, f)
	assert.Equal(t, "userType", FieldUserType.String())
	_, ok = LookupField("notes")
	assert.False(t, ok)
}

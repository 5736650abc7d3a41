package rows

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// LoadCSV reads a header row and every record after it. UTF-8 and UTF-16
// input with a byte order mark is decoded; without a BOM, UTF-8 is assumed.
// Every record must have as many fields as the header.
func LoadCSV(r io.Reader) ([]Row, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.ReuseRecord = true

	cells, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Err: fmt.Errorf("missing header row")}
	}
	if err != nil {
		return nil, csvError(err)
	}
	h := parseHeader(cells)

	var out []Row
	for {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, csvError(err)
		}
		line, _ := cr.FieldPos(0)
		out = append(out, h.row(line, cells))
	}
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Err: pe.Err}
	}
	return &ParseError{Err: err}
}

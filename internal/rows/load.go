// Package rows turns an uploaded CSV or XLSX file into an in-memory batch of
// rows over a fixed set of recognized columns.
package rows

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vvka-141/polingest/pkg/polingest"
)

// Loader reads a whole batch from r.
type Loader func(r io.Reader) ([]Row, error)

// LoaderFor selects a Loader by file extension.
func LoaderFor(path string) (Loader, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return LoadCSV, nil
	case ".xlsx":
		return LoadXLSX, nil
	default:
		return nil, fmt.Errorf("%q: %w", ext, polingest.ErrUnsupportedFormat)
	}
}

// SupportedExtension reports whether path names a loadable file type.
func SupportedExtension(path string) bool {
	_, err := LoaderFor(path)
	return err == nil
}

// LoadFile reads the whole batch at path.
func LoadFile(path string) ([]Row, error) {
	load, err := LoaderFor(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	defer f.Close()

	return load(f)
}

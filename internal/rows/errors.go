package rows

import (
	"fmt"

	"github.com/vvka-141/polingest/pkg/polingest"
)

// ParseError reports an unreadable or malformed batch. Line is 0 when the
// failure is not tied to a line (unreadable file, missing header).
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{polingest.ErrParse, e.Err}
}

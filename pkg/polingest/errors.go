package polingest

import (
	"errors"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	summary, err := pipeline.RunFile(ctx, path)
//	if errors.Is(err, polingest.ErrParse) {
//	    // reject the upload, nothing was written
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")

	// ErrConnectionFailed indicates the store could not be reached.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrParse indicates the input batch was unreadable or structurally malformed.
	// No resolution or write phase has run when this is returned.
	ErrParse = errors.New("parse error")

	// ErrUnsupportedFormat indicates the input file extension has no loader.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrStore indicates a query or insert against the store failed during a run.
	// Records inserted by earlier phases of the same run remain.
	ErrStore = errors.New("store operation failed")
)

// usagePatterns are fragments of cobra/pflag errors caused by bad command lines.
var usagePatterns = []string{
	"unknown flag",
	"unknown shorthand flag",
	"unknown command",
	"accepts ",
	"requires at least",
	"required flag",
	"invalid argument",
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrParse), errors.Is(err, ErrUnsupportedFormat):
		return ExitParseError
	case errors.Is(err, ErrStore):
		return ExitStoreError
	}

	errStr := err.Error()
	for _, p := range usagePatterns {
		if strings.Contains(errStr, p) {
			return ExitUsageError
		}
	}

	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}

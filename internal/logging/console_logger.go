// Package logging provides concrete implementations of the polingest.Logger interface.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
)

// Format selects how log lines are rendered.
type Format string

const (
	// FormatText renders "[VERBOSE] msg", "msg" and "[ERROR] msg" lines.
	FormatText Format = "text"
	// FormatJSON renders one JSON object per line.
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" or "json"; anything else is an error.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown log format %q (want text or json)", s)
	}
}

// ConsoleLogger writes log messages through logrus, to stderr unless told otherwise.
// Safe for concurrent use by multiple goroutines.
type ConsoleLogger struct {
	entry *logrus.Entry
}

// NewConsoleLogger creates a new text ConsoleLogger writing to stderr.
// If verbose is true, Verbose() calls will produce output.
// If verbose is false, Verbose() calls are no-ops.
func NewConsoleLogger(verbose bool) *ConsoleLogger {
	return NewLogger(os.Stderr, verbose, FormatText)
}

// NewLogger creates a ConsoleLogger writing to w in the given format.
func NewLogger(w io.Writer, verbose bool, format Format) *ConsoleLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	if format == FormatJSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&prefixFormatter{})
	}
	return &ConsoleLogger{entry: logrus.NewEntry(l)}
}

// WithField returns a logger that attaches key=value to every line.
func (l *ConsoleLogger) WithField(key string, value interface{}) *ConsoleLogger {
	return &ConsoleLogger{entry: l.entry.WithField(key, value)}
}

// Verbose logs detailed diagnostic information if verbose mode is enabled.
func (l *ConsoleLogger) Verbose(format string, args ...interface{}) {
	if !l.entry.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	l.entry.Debug(render(format, args))
}

// Info logs informational messages about normal operations.
func (l *ConsoleLogger) Info(format string, args ...interface{}) {
	l.entry.Info(render(format, args))
}

// Error logs error messages.
func (l *ConsoleLogger) Error(format string, args ...interface{}) {
	l.entry.Error(render(format, args))
}

func render(format string, args []interface{}) string {
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// prefixFormatter keeps the plain console layout: a level tag for verbose and
// error lines, the message, then any fields as sorted key=value pairs.
type prefixFormatter struct{}

func (f *prefixFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	switch e.Level {
	case logrus.DebugLevel, logrus.TraceLevel:
		b.WriteString("[VERBOSE] ")
	case logrus.WarnLevel:
		b.WriteString("[WARN] ")
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		b.WriteString("[ERROR] ")
	}
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

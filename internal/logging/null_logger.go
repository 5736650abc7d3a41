package logging

// NullLogger discards every message. Tests and library callers that have no
// console use it in place of a ConsoleLogger.
type NullLogger struct{}

// Discard is a ready-to-use NullLogger.
var Discard = &NullLogger{}

// NewNullLogger creates a new NullLogger.
func NewNullLogger() *NullLogger {
	return Discard
}

func (*NullLogger) Verbose(string, ...interface{}) {}
func (*NullLogger) Info(string, ...interface{})    {}
func (*NullLogger) Error(string, ...interface{})   {}

// Package logging provides concrete implementations of the polingest.Logger interface.
//
// Available implementations:
//   - ConsoleLogger: logrus-backed, text or JSON lines, stderr by default
//   - NullLogger: Discards all messages (useful for testing)
//
// All logger implementations are safe for concurrent use by multiple goroutines.
package logging

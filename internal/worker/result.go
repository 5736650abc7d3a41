package worker

import (
	"github.com/vvka-141/polingest/internal/ingest"
)

// Result is the single reply to one submitted file. Exactly one of Summary
// and Err is set.
type Result struct {
	Path    string
	Summary *ingest.Summary
	Err     error
}

func (r Result) Success() bool { return r.Err == nil }

// Message is the serialized form of a Result.
type Message struct {
	Success  bool            `json:"success"`
	RowCount int             `json:"rowCount,omitempty"`
	Summary  *ingest.Summary `json:"summary,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Message renders r for callers outside the process. A failure carries only
// the error text.
func (r Result) Message() Message {
	if r.Err != nil {
		return Message{Error: r.Err.Error()}
	}
	m := Message{Success: true, Summary: r.Summary}
	if r.Summary != nil {
		m.RowCount = r.Summary.Rows
	}
	return m
}

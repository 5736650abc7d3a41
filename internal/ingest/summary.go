package ingest

import (
	"fmt"
	"time"

	"github.com/vvka-141/polingest/pkg/polingest"
)

// KindCounts tallies one entity kind over a run.
type KindCounts struct {
	// Existing counts distinct keys in the batch that were already persisted.
	Existing int `json:"existing"`
	Created  int `json:"created"`
	// Duplicates counts records another writer created between this run's
	// lookup and its insert. They resolve to the other writer's record.
	Duplicates int `json:"duplicates"`
	// Invalid counts keys whose candidate could not be built.
	Invalid int `json:"invalid,omitempty"`
}

// PolicyCounts tallies the policy pass.
type PolicyCounts struct {
	Staged            int `json:"staged"`
	Created           int `json:"created"`
	Duplicates        int `json:"duplicates"`
	SkippedExisting   int `json:"skippedExisting"`
	SkippedDuplicate  int `json:"skippedDuplicate"`
	SkippedUnresolved int `json:"skippedUnresolved"`
	SkippedInvalid    int `json:"skippedInvalid"`
}

// Skipped returns the number of rows that produced no staged policy.
func (c PolicyCounts) Skipped() int {
	return c.SkippedExisting + c.SkippedDuplicate + c.SkippedUnresolved + c.SkippedInvalid
}

// SkipReason says why a row produced no policy.
type SkipReason string

const (
	SkipExisting   SkipReason = "existing"
	SkipDuplicate  SkipReason = "duplicate"
	SkipUnresolved SkipReason = "unresolved"
	SkipInvalid    SkipReason = "invalid"
)

// RowSkip records one row left out of the policy pass.
type RowSkip struct {
	Row          int        `json:"row"`
	Line         int        `json:"line,omitempty"`
	PolicyNumber string     `json:"policyNumber,omitempty"`
	Reason       SkipReason `json:"reason"`
	// Missing names the references that did not resolve (SkipUnresolved).
	Missing []string `json:"missing,omitempty"`
	Detail  string   `json:"detail,omitempty"`
}

// Summary is the outcome of one successful run.
type Summary struct {
	RunID      string       `json:"runId"`
	Rows       int          `json:"rows"`
	Agents     KindCounts   `json:"agents"`
	Categories KindCounts   `json:"categories"`
	Carriers   KindCounts   `json:"carriers"`
	Users      KindCounts   `json:"users"`
	Accounts   KindCounts   `json:"accounts"`
	Policies   PolicyCounts `json:"policies"`
	Skipped    []RowSkip    `json:"skipped,omitempty"`
	Duration   Duration     `json:"duration"`
}

func (s *Summary) skip(c candidate, reason SkipReason, detail string, missing ...string) {
	switch reason {
	case SkipExisting:
		s.Policies.SkippedExisting++
	case SkipDuplicate:
		s.Policies.SkippedDuplicate++
	case SkipUnresolved:
		s.Policies.SkippedUnresolved++
	case SkipInvalid:
		s.Policies.SkippedInvalid++
	}
	s.Skipped = append(s.Skipped, RowSkip{
		Row:          c.index + 1,
		Line:         c.line,
		PolicyNumber: c.policyNumber,
		Reason:       reason,
		Missing:      missing,
		Detail:       detail,
	})
}

// Kinds returns the entity counts in display order.
func (s *Summary) Kinds() []NamedCounts {
	return []NamedCounts{
		{"agents", s.Agents},
		{"categories", s.Categories},
		{"carriers", s.Carriers},
		{"users", s.Users},
		{"accounts", s.Accounts},
	}
}

// NamedCounts pairs a kind name with its counts.
type NamedCounts struct {
	Kind   string
	Counts KindCounts
}

// Log writes the summary at Info, one line per kind.
func (s *Summary) Log(logger polingest.Logger) {
	logger.Info("Run %s: %d rows in %s", s.RunID, s.Rows, time.Duration(s.Duration).Round(time.Millisecond))
	for _, k := range s.Kinds() {
		logger.Info("  %-10s existing=%d created=%d duplicates=%d", k.Kind, k.Counts.Existing, k.Counts.Created, k.Counts.Duplicates)
	}
	p := s.Policies
	logger.Info("  %-10s staged=%d created=%d duplicates=%d skipped=%d (existing=%d duplicate=%d unresolved=%d invalid=%d)",
		"policies", p.Staged, p.Created, p.Duplicates, p.Skipped(),
		p.SkippedExisting, p.SkippedDuplicate, p.SkippedUnresolved, p.SkippedInvalid)
}

// Duration marshals as a Go duration string ("1.5s").
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// StoreError is a fatal store failure during one phase of a run.
type StoreError struct {
	Phase string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{polingest.ErrStore, e.Err}
}

func storeError(phase string, err error) error {
	return &StoreError{Phase: phase, Err: err}
}

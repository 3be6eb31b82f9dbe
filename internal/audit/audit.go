package audit

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is what happened to one change during a run.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"   // committed verbatim
	OutcomeCorrected Outcome = "corrected" // committed after an oracle correction
	OutcomeFailed    Outcome = "failed"
)

// Entry records the outcome of one change in one run.
type Entry struct {
	Timestamp     time.Time
	RunID         string
	ChangeID      string
	EffectiveDate string
	Outcome       Outcome
	Reason        string // failure reason kind, empty unless failed
	Imbalance     decimal.Decimal
	Narrative     string
	Citation      string
	Materialized  []string // "section/label" for lines the change created
}

// Trail is the ordered record of a run.
type Trail []Entry

// Count returns how many entries have the given outcome.
func (t Trail) Count(o Outcome) int {
	n := 0
	for _, e := range t {
		if e.Outcome == o {
			n++
		}
	}
	return n
}

// Find returns the entry for a change ID.
func (t Trail) Find(changeID string) (Entry, bool) {
	for _, e := range t {
		if e.ChangeID == changeID {
			return e, true
		}
	}
	return Entry{}, false
}

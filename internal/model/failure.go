package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ReasonKind enumerates why a change was not applied.
type ReasonKind string

const (
	// ReasonUnbalancedDelta: the change's own deltas do not self-balance.
	ReasonUnbalancedDelta ReasonKind = "unbalanced delta"
	// ReasonInvalidDelta: a delta names an unknown section or no label.
	ReasonInvalidDelta ReasonKind = "invalid delta"
	// ReasonImbalanceAfterApply: the sheet stayed unbalanced after applying
	// the change and any correction.
	ReasonImbalanceAfterApply ReasonKind = "imbalance after apply"
)

// FailureReason is the kind plus the signed imbalance at the point of failure.
type FailureReason struct {
	Kind      ReasonKind      `json:"kind"`
	Imbalance decimal.Decimal `json:"imbalance"`
	Detail    string          `json:"detail,omitempty"`
}

func (r FailureReason) String() string {
	s := fmt.Sprintf("%s (imbalance %s)", r.Kind, r.Imbalance.StringFixed(2))
	if r.Detail != "" {
		s += ": " + r.Detail
	}
	return s
}

// FailureRecord is an unapplied change and what was tried. The engine never
// modifies one after recording it.
type FailureRecord struct {
	Change              Change        `json:"change"`
	AttemptedCorrection *Change       `json:"attempted_fix"`
	Reason              FailureReason `json:"reason"`
}

// Clone returns a deep copy.
func (f FailureRecord) Clone() FailureRecord {
	out := f
	out.Change = f.Change.Clone()
	if f.AttemptedCorrection != nil {
		c := f.AttemptedCorrection.Clone()
		out.AttemptedCorrection = &c
	}
	return out
}

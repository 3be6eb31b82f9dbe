package model

import (
	"github.com/shopspring/decimal"
)

// LineDelta adjusts one labelled line in one section. Section and label are
// checked by the engine, not at decode time, so a bad delta fails only its
// own change.
type LineDelta struct {
	Section    Section         `json:"section"`
	Label      string          `json:"line_item"`
	Adjustment decimal.Decimal `json:"delta"`
}

// Change is a dated bundle of line adjustments describing one settled event.
type Change struct {
	ID            string      `json:"id,omitempty"`
	EffectiveDate Date        `json:"date"`
	Deltas        []LineDelta `json:"deltas"`
	Narrative     string      `json:"update_log"`
	Citation      string      `json:"citation"`
}

// SideTotals sums adjustments on the assets side and on the
// liabilities-plus-equity side. Deltas naming an unknown section count on
// neither side.
func (c Change) SideTotals() (assets, claims decimal.Decimal) {
	assets, claims = decimal.Zero, decimal.Zero
	for _, d := range c.Deltas {
		switch {
		case d.Section == SectionAssets:
			assets = assets.Add(d.Adjustment)
		case d.Section.IsClaim():
			claims = claims.Add(d.Adjustment)
		}
	}
	return assets, claims
}

// Imbalance is the assets-side sum minus the claims-side sum.
func (c Change) Imbalance() decimal.Decimal {
	assets, claims := c.SideTotals()
	return assets.Sub(claims)
}

// SelfBalanced reports whether the change's two sides agree within
// BalanceTolerance.
func (c Change) SelfBalanced() bool {
	return c.Imbalance().Abs().LessThan(BalanceTolerance)
}

// Clone returns a deep copy.
func (c Change) Clone() Change {
	out := c
	if c.Deltas != nil {
		out.Deltas = make([]LineDelta, len(c.Deltas))
		copy(out.Deltas, c.Deltas)
	}
	return out
}

// UpdateSummary is the change list handed to the engine together with the
// share counts stated in the latest filings.
type UpdateSummary struct {
	Changes              []Change `json:"changes"`
	TotalCommonShares    *int64   `json:"total_common_shares" validate:"omitempty,gte=0"`
	TotalPreferredShares *int64   `json:"total_preferred_shares" validate:"omitempty,gte=0"`
}

package reconcile

import (
	"fmt"
	"strings"

	"github.com/cleared-dev/proforma/internal/id"
	"github.com/cleared-dev/proforma/internal/model"
)

// checkDeltas rejects deltas the apply step cannot place: unknown sections
// and empty labels.
func checkDeltas(c model.Change) *model.FailureReason {
	var problems []string
	for i, d := range c.Deltas {
		leg := id.FormatLegID(c.ID, i)
		if !d.Section.Valid() {
			problems = append(problems, fmt.Sprintf("%s: unknown section %q", leg, d.Section))
		}
		if strings.TrimSpace(d.Label) == "" {
			problems = append(problems, fmt.Sprintf("%s: empty line item label", leg))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &model.FailureReason{
		Kind:      model.ReasonInvalidDelta,
		Imbalance: c.Imbalance(),
		Detail:    strings.Join(problems, "; "),
	}
}

// validateChange is the Validate step: well-formed deltas whose assets side
// equals the liabilities-plus-equity side.
func validateChange(c model.Change) *model.FailureReason {
	if r := checkDeltas(c); r != nil {
		return r
	}
	if c.SelfBalanced() {
		return nil
	}
	assets, claims := c.SideTotals()
	return &model.FailureReason{
		Kind:      model.ReasonUnbalancedDelta,
		Imbalance: assets.Sub(claims),
		Detail:    fmt.Sprintf("assets %s != liabilities+equity %s", assets.StringFixed(2), claims.StringFixed(2)),
	}
}

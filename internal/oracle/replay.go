package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/proforma/internal/model"
	"github.com/cleared-dev/proforma/internal/reconcile"
)

// Corrections holds recorded corrections by filer CIK, then change ID.
// Generated change IDs restart for every filing, so the CIK is part of the key.
type Corrections map[string]map[string]model.Change

// Replay answers from corrections recorded in an earlier session. A change
// without a recorded correction for its filer comes back unchanged.
type Replay struct {
	corrections Corrections
}

var _ reconcile.Oracle = (*Replay)(nil)

// NewReplay wraps an in-memory correction map.
func NewReplay(corrections Corrections) *Replay {
	if corrections == nil {
		corrections = make(Corrections)
	}
	return &Replay{corrections: corrections}
}

// LoadReplay reads a JSON object of the form {"<cik>": {"<change id>": change}}.
func LoadReplay(path string) (*Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading replay file: %w", err)
	}
	var corrections Corrections
	if err := json.Unmarshal(data, &corrections); err != nil {
		return nil, fmt.Errorf("parsing replay file %s: %w", path, err)
	}
	return NewReplay(corrections), nil
}

// Len returns the number of recorded corrections across all filers.
func (r *Replay) Len() int {
	n := 0
	for _, byID := range r.corrections {
		n += len(byID)
	}
	return n
}

func (r *Replay) ProposeCorrection(ctx context.Context, snapshot *model.BalanceSheet, failing model.Change, _ decimal.Decimal) (model.Change, error) {
	if err := ctx.Err(); err != nil {
		return model.Change{}, err
	}
	if snapshot == nil {
		return failing, nil
	}
	fix, ok := r.corrections[snapshot.FilerID][failing.ID]
	if !ok {
		return failing, nil
	}
	return fix.Clone(), nil
}

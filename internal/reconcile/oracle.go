package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/proforma/internal/model"
)

// Oracle proposes a corrected change when applying the original leaves the
// sheet unbalanced. Implementations may be slow and must not mutate their
// arguments. Returning the change unchanged means no correction is justified.
type Oracle interface {
	ProposeCorrection(ctx context.Context, snapshot *model.BalanceSheet, failing model.Change, imbalance decimal.Decimal) (model.Change, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, snapshot *model.BalanceSheet, failing model.Change, imbalance decimal.Decimal) (model.Change, error)

// ProposeCorrection calls f.
func (f OracleFunc) ProposeCorrection(ctx context.Context, snapshot *model.BalanceSheet, failing model.Change, imbalance decimal.Decimal) (model.Change, error) {
	return f(ctx, snapshot, failing, imbalance)
}

// ErrOracleUnavailable marks any oracle failure, timeout included.
var ErrOracleUnavailable = errors.New("correction oracle unavailable")

// OracleError wraps the cause of an oracle failure for one change.
type OracleError struct {
	ChangeID string
	Err      error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("%s for change %s: %v", ErrOracleUnavailable, e.ChangeID, e.Err)
}

func (e *OracleError) Unwrap() []error {
	return []error{ErrOracleUnavailable, e.Err}
}

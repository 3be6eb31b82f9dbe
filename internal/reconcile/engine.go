package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/proforma/internal/audit"
	"github.com/cleared-dev/proforma/internal/id"
	"github.com/cleared-dev/proforma/internal/metrics"
	"github.com/cleared-dev/proforma/internal/model"
)

// Options configures an Engine. The zero value is a valid engine without a
// correction oracle.
type Options struct {
	// Oracle is consulted once per change that unbalances the sheet. Nil
	// routes every imbalance straight to failure.
	Oracle Oracle
	// OracleTimeout bounds one oracle call. Zero means no engine-side limit.
	OracleTimeout time.Duration
	// MaxDepth bounds line item nesting in the initial sheet.
	MaxDepth int
	Logger   *zerolog.Logger
	Metrics  *metrics.Metrics
	// Clock stamps audit entries. Defaults to time.Now.
	Clock func() time.Time
}

// Engine applies change lists to balance sheets. One Engine may serve many
// independent runs; each run owns its working sheet exclusively.
type Engine struct {
	oracle   Oracle
	timeout  time.Duration
	maxDepth int
	log      zerolog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		oracle:   opts.Oracle,
		timeout:  opts.OracleTimeout,
		maxDepth: opts.MaxDepth,
		log:      zerolog.Nop(),
		metrics:  opts.Metrics,
		now:      opts.Clock,
	}
	if opts.Logger != nil {
		e.log = *opts.Logger
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Result is the outcome of one run.
type Result struct {
	RunID string
	// Baseline is an untouched copy of the sheet the run started from.
	Baseline *model.BalanceSheet
	Sheet    *model.BalanceSheet
	Trail    audit.Trail
}

// Run applies summary's changes to a copy of initial in effective-date order
// and returns the updated sheet with its audit trail. initial is not
// modified. Only a *model.StructuralError is returned; per-change failures
// are recorded on Result.Sheet.FailedChanges.
func (e *Engine) Run(ctx context.Context, initial *model.BalanceSheet, summary model.UpdateSummary) (*Result, error) {
	start := time.Now()
	if err := initial.CheckStructure(e.maxDepth); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	r := &run{
		engine: e,
		id:     runID,
		log:    e.log.With().Str("run_id", runID).Str("cik", initial.FilerID).Logger(),
		sheet:  initial.Clone(),
	}
	r.sheet.AppliedChanges = nil
	r.sheet.FailedChanges = nil

	if !initial.Balanced() {
		r.log.Warn().
			Str("imbalance", initial.BalanceDifference().StringFixed(2)).
			Msg("initial balance sheet is not balanced")
	}

	changes := orderChanges(summary.Changes)
	r.log.Info().Int("changes", len(changes)).Bool("oracle", e.oracle != nil).Msg("reconciliation started")

	for _, c := range changes {
		r.process(ctx, c)
	}

	r.sheet.CommonShares = copyShares(summary.TotalCommonShares)
	r.sheet.PreferredShares = copyShares(summary.TotalPreferredShares)

	balanced := r.sheet.Balanced()
	e.metrics.ObserveRun(start, balanced)
	r.log.Info().
		Int("applied", r.trail.Count(audit.OutcomeApplied)).
		Int("corrected", r.trail.Count(audit.OutcomeCorrected)).
		Int("failed", r.trail.Count(audit.OutcomeFailed)).
		Bool("balanced", balanced).
		Msg("reconciliation finished")

	return &Result{
		RunID:    runID,
		Baseline: initial.Clone(),
		Sheet:    r.sheet,
		Trail:    r.trail,
	}, nil
}

// orderChanges copies the changes, stable-sorts them by effective date and
// assigns IDs to those without one.
func orderChanges(in []model.Change) []model.Change {
	out := make([]model.Change, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveDate.Before(out[j].EffectiveDate.Time)
	})

	seq := id.NewSequencer()
	for _, c := range out {
		if c.ID != "" {
			seq.Reserve(c.ID)
		}
	}
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = seq.Next(out[i].EffectiveDate.Time)
		}
	}
	return out
}

type run struct {
	engine *Engine
	id     string
	log    zerolog.Logger
	sheet  *model.BalanceSheet
	trail  audit.Trail
}

func (r *run) process(ctx context.Context, c model.Change) {
	log := r.log.With().Str("change_id", c.ID).Str("date", c.EffectiveDate.String()).Logger()

	if reason := validateChange(c); reason != nil {
		r.fail(log, c, nil, *reason)
		return
	}

	snapshot := r.sheet.CloneTables()
	created := apply(r.sheet, c)
	if r.sheet.Balanced() {
		r.commit(log, c, audit.OutcomeApplied, created)
		return
	}
	imbalance := r.sheet.BalanceDifference()
	r.sheet.Tables = snapshot

	if r.engine.oracle == nil {
		r.fail(log, c, nil, model.FailureReason{
			Kind:      model.ReasonImbalanceAfterApply,
			Imbalance: imbalance,
			Detail:    "no correction oracle configured",
		})
		return
	}

	log.Debug().Str("imbalance", imbalance.StringFixed(2)).Msg("requesting correction")
	proposed, err := r.engine.propose(ctx, r.sheet, c, imbalance)
	if err != nil {
		r.fail(log, c, nil, model.FailureReason{
			Kind:      model.ReasonImbalanceAfterApply,
			Imbalance: imbalance,
			Detail:    err.Error(),
		})
		return
	}
	corrected := adoptIdentity(c, proposed)

	if reason := checkDeltas(corrected); reason != nil {
		reason.Imbalance = imbalance
		r.fail(log, c, &corrected, *reason)
		return
	}

	snapshot = r.sheet.CloneTables()
	created = apply(r.sheet, corrected)
	if r.sheet.Balanced() {
		r.commit(log, corrected, audit.OutcomeCorrected, created)
		return
	}
	residual := r.sheet.BalanceDifference()
	r.sheet.Tables = snapshot

	r.fail(log, c, &corrected, model.FailureReason{
		Kind:      model.ReasonImbalanceAfterApply,
		Imbalance: residual,
		Detail:    "correction did not restore balance",
	})
}

func (r *run) commit(log zerolog.Logger, c model.Change, outcome audit.Outcome, created []string) {
	r.sheet.AppliedChanges = append(r.sheet.AppliedChanges, c)
	r.trail = append(r.trail, r.entry(c, outcome, created))
	r.engine.metrics.ObserveChange(string(outcome))

	log.Debug().Str("outcome", string(outcome)).Strs("materialized", created).Msg("change committed")
}

func (r *run) fail(log zerolog.Logger, c model.Change, attempted *model.Change, reason model.FailureReason) {
	r.sheet.FailedChanges = append(r.sheet.FailedChanges, model.FailureRecord{
		Change:              c,
		AttemptedCorrection: attempted,
		Reason:              reason,
	})

	e := r.entry(c, audit.OutcomeFailed, nil)
	e.Reason = string(reason.Kind)
	e.Imbalance = reason.Imbalance
	r.trail = append(r.trail, e)

	r.engine.metrics.ObserveChange(string(audit.OutcomeFailed))
	r.engine.metrics.ObserveFailure(reason.Imbalance.Abs().InexactFloat64())

	log.Warn().
		Str("reason", string(reason.Kind)).
		Str("imbalance", reason.Imbalance.StringFixed(2)).
		Str("detail", reason.Detail).
		Bool("correction_attempted", attempted != nil).
		Msg("change not applied")
}

func (r *run) entry(c model.Change, outcome audit.Outcome, created []string) audit.Entry {
	return audit.Entry{
		Timestamp:     r.engine.now().UTC(),
		RunID:         r.id,
		ChangeID:      c.ID,
		EffectiveDate: c.EffectiveDate.String(),
		Outcome:       outcome,
		Narrative:     c.Narrative,
		Citation:      c.Citation,
		Materialized:  created,
	}
}

// propose makes the single oracle call for a change. The oracle gets private
// copies of its inputs and the call is abandoned when ctx or the configured
// timeout expires.
func (e *Engine) propose(ctx context.Context, snapshot *model.BalanceSheet, c model.Change, imbalance decimal.Decimal) (model.Change, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type reply struct {
		change model.Change
		err    error
	}
	replies := make(chan reply, 1)
	sheet, failing := snapshot.Clone(), c.Clone()
	go func() {
		defer func() {
			if p := recover(); p != nil {
				replies <- reply{err: fmt.Errorf("oracle panicked: %v", p)}
			}
		}()
		corrected, err := e.oracle.ProposeCorrection(ctx, sheet, failing, imbalance)
		replies <- reply{change: corrected, err: err}
	}()

	select {
	case rep := <-replies:
		if rep.err != nil {
			if errors.Is(rep.err, context.DeadlineExceeded) {
				e.metrics.ObserveOracle("timeout")
			} else {
				e.metrics.ObserveOracle("error")
			}
			return model.Change{}, &OracleError{ChangeID: c.ID, Err: rep.err}
		}
		e.metrics.ObserveOracle("ok")
		return rep.change, nil
	case <-ctx.Done():
		e.metrics.ObserveOracle("timeout")
		return model.Change{}, &OracleError{ChangeID: c.ID, Err: ctx.Err()}
	}
}

// adoptIdentity keeps the original change's identity on a proposed
// correction. The oracle may replace the deltas and, when it cites a new
// source, the citation.
func adoptIdentity(original, proposed model.Change) model.Change {
	out := proposed.Clone()
	out.ID = original.ID
	out.EffectiveDate = original.EffectiveDate
	out.Narrative = original.Narrative
	if out.Citation == "" {
		out.Citation = original.Citation
	}
	return out
}

func apply(bs *model.BalanceSheet, c model.Change) []string {
	var created []string
	for _, d := range c.Deltas {
		if bs.Table(d.Section).Adjust(d.Label, d.Adjustment) {
			created = append(created, string(d.Section)+"/"+d.Label)
		}
	}
	return created
}

func copyShares(v *int64) *int64 {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BalanceTolerance absorbs rounding only. It is not a materiality threshold.
var BalanceTolerance = decimal.New(1, -2)

// DefaultMaxDepth bounds line item nesting in documents from collaborators.
const DefaultMaxDepth = 32

// SectionTable is the ordered list of line items under one section.
type SectionTable struct {
	Kind  Section    `json:"section" validate:"required,oneof=assets liabilities equity"`
	Lines []LineItem `json:"lines" validate:"dive"`

	// DeclaredSubtotal is copied from the statement and never recomputed.
	DeclaredSubtotal *decimal.Decimal `json:"subtotal,omitempty"`
}

// Total sums the totals of every line. It is recomputed on each call.
func (t SectionTable) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range t.Lines {
		total = total.Add(l.Total())
	}
	return total
}

// Find returns the top-level line with the given label, or nil.
func (t *SectionTable) Find(label string) *LineItem {
	for i := range t.Lines {
		if t.Lines[i].Label == label {
			return &t.Lines[i]
		}
	}
	return nil
}

// Adjust adds amount to the named line, materializing it at zero first when
// absent. It reports whether the line was created.
func (t *SectionTable) Adjust(label string, amount decimal.Decimal) bool {
	line := t.Find(label)
	created := false
	if line == nil {
		t.Lines = append(t.Lines, LineItem{Label: label, Value: decimal.Zero})
		line = &t.Lines[len(t.Lines)-1]
		created = true
	}
	line.SetValue(line.Value.Add(amount))
	return created
}

// Clone returns a deep copy.
func (t SectionTable) Clone() SectionTable {
	out := t
	if t.Lines != nil {
		out.Lines = make([]LineItem, len(t.Lines))
		for i, l := range t.Lines {
			out.Lines[i] = l.Clone()
		}
	}
	if t.DeclaredSubtotal != nil {
		sub := *t.DeclaredSubtotal
		out.DeclaredSubtotal = &sub
	}
	return out
}

// BalanceSheet is one filer's statement plus the audit lists of a run.
type BalanceSheet struct {
	CompanyName string `json:"company_name"`
	FilerID     string `json:"cik"`
	FilingDate  Date   `json:"filing_date"`
	PeriodEnd   Date   `json:"period_end"`

	Tables []SectionTable `json:"tables" validate:"dive"`

	CommonShares    *int64 `json:"shares_outstanding_common" validate:"omitempty,gte=0"`
	PreferredShares *int64 `json:"shares_outstanding_preferred" validate:"omitempty,gte=0"`

	// Nil, not empty, when a run applied or rejected nothing.
	AppliedChanges []Change        `json:"applied_updates"`
	FailedChanges  []FailureRecord `json:"update_errors"`
}

// Table returns the table for kind, or nil when the sheet lacks one.
func (bs *BalanceSheet) Table(kind Section) *SectionTable {
	for i := range bs.Tables {
		if bs.Tables[i].Kind == kind {
			return &bs.Tables[i]
		}
	}
	return nil
}

// Total returns the total of the kind's table, zero when absent.
func (bs *BalanceSheet) Total(kind Section) decimal.Decimal {
	t := bs.Table(kind)
	if t == nil {
		return decimal.Zero
	}
	return t.Total()
}

// BalanceDifference is assets minus liabilities minus equity. Positive means
// assets exceed the claims side.
func (bs *BalanceSheet) BalanceDifference() decimal.Decimal {
	return bs.Total(SectionAssets).
		Sub(bs.Total(SectionLiabilities)).
		Sub(bs.Total(SectionEquity))
}

// Balanced reports whether assets equal liabilities plus equity within
// BalanceTolerance.
func (bs *BalanceSheet) Balanced() bool {
	return bs.BalanceDifference().Abs().LessThan(BalanceTolerance)
}

// CloneTables deep-copies the section tables only.
func (bs *BalanceSheet) CloneTables() []SectionTable {
	if bs.Tables == nil {
		return nil
	}
	out := make([]SectionTable, len(bs.Tables))
	for i, t := range bs.Tables {
		out[i] = t.Clone()
	}
	return out
}

// Clone returns a deep copy of the whole sheet.
func (bs *BalanceSheet) Clone() *BalanceSheet {
	out := *bs
	out.Tables = bs.CloneTables()
	out.CommonShares = cloneInt(bs.CommonShares)
	out.PreferredShares = cloneInt(bs.PreferredShares)
	if bs.AppliedChanges != nil {
		out.AppliedChanges = make([]Change, len(bs.AppliedChanges))
		for i, c := range bs.AppliedChanges {
			out.AppliedChanges[i] = c.Clone()
		}
	}
	if bs.FailedChanges != nil {
		out.FailedChanges = make([]FailureRecord, len(bs.FailedChanges))
		for i, f := range bs.FailedChanges {
			out.FailedChanges[i] = f.Clone()
		}
	}
	return &out
}

// CheckStructure verifies exactly one table per section, unique top-level
// labels per table, and bounded nesting. maxDepth <= 0 selects
// DefaultMaxDepth.
func (bs *BalanceSheet) CheckStructure(maxDepth int) error {
	if bs == nil {
		return &StructuralError{Reason: "balance sheet is nil"}
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	seen := make(map[Section]bool, 3)
	for _, t := range bs.Tables {
		if !t.Kind.Valid() {
			return &StructuralError{Path: string(t.Kind), Reason: "unknown section"}
		}
		if seen[t.Kind] {
			return &StructuralError{Path: string(t.Kind), Reason: "duplicate section table"}
		}
		seen[t.Kind] = true

		labels := make(map[string]bool, len(t.Lines))
		for _, l := range t.Lines {
			path := string(t.Kind) + "/" + l.Label
			if labels[l.Label] {
				return &StructuralError{Path: path, Reason: "duplicate line item label"}
			}
			labels[l.Label] = true
			if err := l.checkDepth(path, maxDepth); err != nil {
				return err
			}
		}
	}
	for _, kind := range Sections() {
		if !seen[kind] {
			return &StructuralError{Path: string(kind), Reason: "missing section table"}
		}
	}
	return nil
}

// String identifies the filer for log lines.
func (bs *BalanceSheet) String() string {
	return fmt.Sprintf("%s (CIK %s)", bs.CompanyName, bs.FilerID)
}

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

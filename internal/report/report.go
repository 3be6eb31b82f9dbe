// Package report renders balance sheets as plain text tables.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cleared-dev/proforma/internal/model"
)

const (
	balancedMark   = "✓ Balanced (Assets = Liab + Equity)"
	unbalancedMark = "⚠ NOT balanced! Check totals."
)

var (
	printer = message.NewPrinter(language.English)
	upper   = cases.Upper(language.English)
)

// FormatAmount rounds to whole units and groups thousands: 1,234,568.
func FormatAmount(d decimal.Decimal) string {
	return printer.Sprintf("%d", d.Round(0).IntPart())
}

// formatSigned is FormatAmount with an explicit sign.
func formatSigned(d decimal.Decimal) string {
	s := FormatAmount(d)
	if !strings.HasPrefix(s, "-") {
		s = "+" + s
	}
	return s
}

// DeltaSummary renders a change's deltas as "assets:Cash-600,000; ...".
func DeltaSummary(c model.Change) string {
	parts := make([]string, 0, len(c.Deltas))
	for _, d := range c.Deltas {
		parts = append(parts, string(d.Section)+":"+d.Label+formatSigned(d.Adjustment))
	}
	return strings.Join(parts, "; ")
}

// Render writes original alone, or side by side with updated plus the
// applied and unresolved change tables when updated is non-nil.
func Render(w io.Writer, original, updated *model.BalanceSheet) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	fmt.Fprintf(tw, "%s   CIK %s\n", original.CompanyName, original.FilerID)
	fmt.Fprintf(tw, "Filing date: %s   Period end: %s\n\n", original.FilingDate, original.PeriodEnd)

	if updated == nil {
		for _, t := range original.Tables {
			renderSingle(tw, t)
		}
		fmt.Fprintf(tw, "%s\n\n", mark(original))
		return tw.Flush()
	}

	for _, t := range original.Tables {
		after := updated.Table(t.Kind)
		if after == nil {
			after = &model.SectionTable{Kind: t.Kind}
		}
		renderComparison(tw, original.FilingDate.String(), t, *after)
	}
	fmt.Fprintf(tw, "%s\n\n", mark(updated))

	if len(updated.AppliedChanges) > 0 {
		fmt.Fprint(tw, "Applied Updates:\n\n")
		fmt.Fprint(tw, "Date\tUpdate Log\tDeltas\tCitation\n")
		fmt.Fprint(tw, "----\t----------\t------\t--------\n")
		for _, c := range updated.AppliedChanges {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.EffectiveDate, clean(c.Narrative), clean(DeltaSummary(c)), clean(c.Citation))
		}
		fmt.Fprintln(tw)
	}

	if len(updated.FailedChanges) > 0 {
		fmt.Fprint(tw, "Unresolved Updates:\n\n")
		fmt.Fprint(tw, "Date\tUpdate Log\tAttempted Deltas\tCitation\tReason\n")
		fmt.Fprint(tw, "----\t----------\t----------------\t--------\t------\n")
		for _, f := range updated.FailedChanges {
			shown := f.Change
			if f.AttemptedCorrection != nil {
				shown = *f.AttemptedCorrection
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.Change.EffectiveDate, clean(shown.Narrative), clean(DeltaSummary(shown)), clean(shown.Citation), clean(f.Reason.String()))
		}
		fmt.Fprintln(tw)
	}

	return tw.Flush()
}

type row struct {
	path  string
	label string
	value string
}

// flatten lists lines depth first, components indented two spaces per level.
func flatten(lines []model.LineItem, prefix string, indent int, out []row) []row {
	for _, l := range lines {
		path := prefix + "/" + l.Label
		out = append(out, row{path: path, label: strings.Repeat(" ", indent) + l.Label, value: FormatAmount(l.Value)})
		out = flatten(l.Components, path, indent+2, out)
	}
	return out
}

func renderSingle(w io.Writer, t model.SectionTable) {
	title := upper.String(string(t.Kind))
	fmt.Fprintf(w, "%s\n", title)
	fmt.Fprint(w, "Line Item\tUSD\n---------\t---\n")
	for _, r := range flatten(t.Lines, "", 0, nil) {
		fmt.Fprintf(w, "%s\t%s\n", r.label, r.value)
	}
	if t.DeclaredSubtotal != nil {
		fmt.Fprintf(w, "TOTAL %s\t%s\n", title, FormatAmount(*t.DeclaredSubtotal))
	}
	fmt.Fprintln(w)
}

// renderComparison matches lines by path, so lines created by a run appear
// after the original ones with an empty original column.
func renderComparison(w io.Writer, asOf string, before, after model.SectionTable) {
	title := upper.String(string(before.Kind))
	fmt.Fprintf(w, "%s\n", title)
	fmt.Fprintf(w, "Line Item\t%s\tUpdated\n---------\t%s\t-------\n", asOf, strings.Repeat("-", max(len(asOf), 3)))

	afterRows := flatten(after.Lines, "", 0, nil)
	updatedValue := make(map[string]string, len(afterRows))
	for _, r := range afterRows {
		updatedValue[r.path] = r.value
	}
	seen := make(map[string]bool)
	for _, r := range flatten(before.Lines, "", 0, nil) {
		seen[r.path] = true
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.label, r.value, updatedValue[r.path])
	}
	for _, r := range afterRows {
		if !seen[r.path] {
			fmt.Fprintf(w, "%s\t\t%s\n", r.label, r.value)
		}
	}
	if before.DeclaredSubtotal != nil {
		fmt.Fprintf(w, "TOTAL %s\t%s\t%s\n", title, FormatAmount(*before.DeclaredSubtotal), FormatAmount(after.Total()))
	}
	fmt.Fprintln(w)
}

func mark(bs *model.BalanceSheet) string {
	if bs.Balanced() {
		return balancedMark
	}
	return unbalancedMark
}

// clean keeps free text on one table row.
func clean(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", "").Replace(s)
}

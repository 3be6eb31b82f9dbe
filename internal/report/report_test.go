package report

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/proforma/internal/model"
	"github.com/cleared-dev/proforma/internal/reconcile"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func acme() *model.BalanceSheet {
	subtotal := dec("1000300")
	return &model.BalanceSheet{
		CompanyName: "Acme Holdings",
		FilerID:     "1737523",
		FilingDate:  model.NewDate(2025, 5, 14),
		PeriodEnd:   model.NewDate(2025, 3, 31),
		Tables: []model.SectionTable{
			{Kind: model.SectionAssets, DeclaredSubtotal: &subtotal, Lines: []model.LineItem{
				{Label: "Cash", Value: dec("1000000")},
				{Label: "Receivables", Value: dec("0"), Components: []model.LineItem{
					{Label: "Trade", Value: dec("250")},
					{Label: "Other", Value: dec("50")},
				}},
			}},
			{Kind: model.SectionLiabilities, Lines: []model.LineItem{{Label: "Accounts payable", Value: dec("300")}}},
			{Kind: model.SectionEquity, Lines: []model.LineItem{{Label: "Common stock", Value: dec("1000000")}}},
		},
	}
}

// lineWith returns the first output line containing s.
func lineWith(t *testing.T, out, s string) string {
	t.Helper()
	for _, l := range strings.Split(out, "\n") {
		if strings.Contains(l, s) {
			return l
		}
	}
	t.Fatalf("no line containing %q in:\n%s", s, out)
	return ""
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"0", "0"},
		{"999", "999"},
		{"1000000", "1,000,000"},
		{"-1234567.6", "-1,234,568"},
		{"0.4", "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmount(dec(tt.in)), tt.in)
	}
}

func TestDeltaSummary(t *testing.T) {
	c := model.Change{Deltas: []model.LineDelta{
		{Section: model.SectionAssets, Label: "Cash", Adjustment: dec("-600000")},
		{Section: model.SectionAssets, Label: "Digital assets", Adjustment: dec("600000")},
		{Section: model.SectionEquity, Label: "APIC", Adjustment: dec("0")},
	}}
	assert.Equal(t, "assets:Cash-600,000; assets:Digital assets+600,000; equity:APIC+0", DeltaSummary(c))
}

func TestRender_Single(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, acme(), nil))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "Acme Holdings   CIK 1737523\nFiling date: 2025-05-14   Period end: 2025-03-31\n"))
	assert.Contains(t, out, "ASSETS\n")
	assert.Contains(t, out, "LIABILITIES\n")
	assert.Contains(t, lineWith(t, out, "Cash"), "1,000,000")
	assert.True(t, strings.HasPrefix(lineWith(t, out, "Trade"), "  Trade"), "components are indented")
	assert.Contains(t, lineWith(t, out, "TOTAL ASSETS"), "1,000,300")
	assert.NotContains(t, out, "TOTAL EQUITY", "no declared subtotal, no total row")
	assert.Contains(t, out, balancedMark)
	assert.NotContains(t, out, "Applied Updates")
}

func TestRender_Comparison(t *testing.T) {
	original := acme()
	e := reconcile.New(reconcile.Options{})
	res, err := e.Run(context.Background(), original, model.UpdateSummary{Changes: []model.Change{
		{
			EffectiveDate: model.NewDate(2025, 6, 2),
			Narrative:     "Purchased bitcoin\tfor treasury",
			Citation:      "8-K Item 8.01",
			Deltas: []model.LineDelta{
				{Section: model.SectionAssets, Label: "Cash", Adjustment: dec("-600000")},
				{Section: model.SectionAssets, Label: "Digital assets", Adjustment: dec("600000")},
			},
		},
		{
			EffectiveDate: model.NewDate(2025, 6, 20),
			Narrative:     "Registered direct offering",
			Citation:      "8-K Item 3.02",
			Deltas: []model.LineDelta{
				{Section: model.SectionEquity, Label: "Common stock", Adjustment: dec("1000")},
				{Section: model.SectionAssets, Label: "Cash", Adjustment: dec("999000")},
			},
		},
	}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, original, res.Sheet))
	out := buf.String()

	assert.Contains(t, lineWith(t, out, "Line Item"), "2025-05-14")
	assert.Contains(t, lineWith(t, out, "Line Item"), "Updated")

	cash := strings.Fields(lineWith(t, out, "Cash"))
	assert.Equal(t, []string{"Cash", "1,000,000", "400,000"}, cash)

	digital := lineWith(t, out, "Digital assets")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(digital), "600,000"))
	assert.Equal(t, 1, strings.Count(digital, "600,000"), "new line has no original value")

	assert.Equal(t, []string{"TOTAL", "ASSETS", "1,000,300", "1,000,300"}, strings.Fields(lineWith(t, out, "TOTAL ASSETS")))

	assert.Contains(t, out, "Applied Updates:")
	applied := lineWith(t, out, "Purchased bitcoin for treasury")
	assert.Contains(t, applied, "2025-06-02")
	assert.Contains(t, applied, "assets:Cash-600,000; assets:Digital assets+600,000")

	assert.Contains(t, out, "Unresolved Updates:")
	failed := lineWith(t, out, "Registered direct offering")
	assert.Contains(t, failed, "unbalanced delta (imbalance 998000.00)")
	assert.Contains(t, failed, "equity:Common stock+1,000; assets:Cash+999,000")
}

func TestRender_NotBalanced(t *testing.T) {
	bs := acme()
	bs.Tables[0].Lines[0].Value = dec("5")

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, bs, nil))
	assert.Contains(t, buf.String(), unbalancedMark)
}

package oracle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/proforma/internal/model"
	"github.com/cleared-dev/proforma/internal/reconcile"
)

const replayJSON = `{
  "1737523": {
    "2025-04-001": {
      "date": "2025-04-01",
      "deltas": [
        {"section": "assets", "line_item": "Digital assets", "delta": 1000},
        {"section": "equity", "line_item": "Common stock", "delta": 1000},
        {"section": "equity", "line_item": "APIC", "delta": 500}
      ],
      "update_log": "Token sale",
      "citation": "10-Q note 7"
    }
  }
}`

func writeReplay(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corrections.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReplay_RecordedCorrection(t *testing.T) {
	r, err := LoadReplay(writeReplay(t, replayJSON))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	fixed, err := r.ProposeCorrection(context.Background(), offBalanceSheet(), tokenSale("2025-04-001"), dec("500"))
	require.NoError(t, err)
	require.Len(t, fixed.Deltas, 3)
	assert.Equal(t, "APIC", fixed.Deltas[2].Label)
	assert.Equal(t, "10-Q note 7", fixed.Citation)

	fixed.Deltas[2].Label = "mutated"
	again, err := r.ProposeCorrection(context.Background(), offBalanceSheet(), tokenSale("2025-04-001"), dec("500"))
	require.NoError(t, err)
	assert.Equal(t, "APIC", again.Deltas[2].Label)
}

func TestReplay_OtherFilerUnchanged(t *testing.T) {
	r, err := LoadReplay(writeReplay(t, replayJSON))
	require.NoError(t, err)

	other := offBalanceSheet()
	other.FilerID = "1001001"
	in := tokenSale("2025-04-001")

	out, err := r.ProposeCorrection(context.Background(), other, in, dec("500"))
	require.NoError(t, err)
	assert.Equal(t, in, out, "a correction recorded for one filer never applies to another")
}

func TestReplay_UnknownChangeUnchanged(t *testing.T) {
	r := NewReplay(nil)
	in := tokenSale("2025-05-003")

	out, err := r.ProposeCorrection(context.Background(), offBalanceSheet(), in, dec("500"))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReplay_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReplay(nil).ProposeCorrection(ctx, offBalanceSheet(), tokenSale("2025-04-001"), dec("500"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadReplay_Errors(t *testing.T) {
	_, err := LoadReplay(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadReplay(writeReplay(t, `["not", "a", "map"]`))
	assert.Error(t, err)

	_, err = LoadReplay(writeReplay(t, `{"2025-04-001": {"date": "2025-04-01"}}`))
	assert.Error(t, err, "entries must be grouped by filer")
}

// shortSheet is 500 short on the assets side.
func shortSheet(cik string) *model.BalanceSheet {
	return &model.BalanceSheet{
		CompanyName: "Filer " + cik,
		FilerID:     cik,
		Tables: []model.SectionTable{
			{Kind: model.SectionAssets, Lines: []model.LineItem{{Label: "Cash", Value: dec("500")}}},
			{Kind: model.SectionLiabilities},
			{Kind: model.SectionEquity, Lines: []model.LineItem{{Label: "Common stock", Value: dec("1000")}}},
		},
	}
}

func TestReplay_BatchKeepsFilingsApart(t *testing.T) {
	// Both filings get the generated ID 2025-01-001; only filer A has a correction.
	issue := model.UpdateSummary{Changes: []model.Change{{
		EffectiveDate: model.NewDate(2025, 1, 15),
		Narrative:     "Share issue",
		Deltas: []model.LineDelta{
			{Section: model.SectionAssets, Label: "Cash", Adjustment: dec("1")},
			{Section: model.SectionEquity, Label: "Common stock", Adjustment: dec("1")},
		},
	}}}
	replay := NewReplay(Corrections{"100": {"2025-01-001": {
		EffectiveDate: model.NewDate(2025, 1, 15),
		Deltas: []model.LineDelta{
			{Section: model.SectionAssets, Label: "Cash", Adjustment: dec("501")},
			{Section: model.SectionEquity, Label: "Common stock", Adjustment: dec("1")},
		},
		Citation: "10-Q note 2",
	}}})

	e := reconcile.New(reconcile.Options{Oracle: replay})
	results := e.RunBatch(context.Background(), []reconcile.Job{
		{Name: "a", Sheet: shortSheet("100"), Summary: issue},
		{Name: "b", Sheet: shortSheet("200"), Summary: issue},
	}, 2)
	require.Len(t, results, 2)

	a := results[0]
	require.NoError(t, a.Err)
	require.Len(t, a.Result.Sheet.AppliedChanges, 1)
	assert.Equal(t, "2025-01-001", a.Result.Sheet.AppliedChanges[0].ID)
	assert.Equal(t, "10-Q note 2", a.Result.Sheet.AppliedChanges[0].Citation)
	assert.True(t, a.Result.Sheet.Balanced())

	b := results[1]
	require.NoError(t, b.Err)
	assert.Nil(t, b.Result.Sheet.AppliedChanges)
	require.Len(t, b.Result.Sheet.FailedChanges, 1)
	assert.Equal(t, "2025-01-001", b.Result.Sheet.FailedChanges[0].Change.ID)
	assert.Equal(t, model.ReasonImbalanceAfterApply, b.Result.Sheet.FailedChanges[0].Reason.Kind)
	assert.Equal(t, "500", b.Result.Sheet.Table(model.SectionAssets).Find("Cash").Value.String())
}

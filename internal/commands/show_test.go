package commands_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShow_Single(t *testing.T) {
	out, err := runProforma(t, t.TempDir(), "show", testdata(t, "filings", "acme", "sheet.json"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "Acme Holdings   CIK 1737523")
	assert.Contains(t, out, "ASSETS")
	assert.Contains(t, out, "TOTAL ASSETS")
	assert.Contains(t, out, "Balanced")
	assert.NotContains(t, out, "Updated")
}

func TestShow_Baseline(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "proforma.json")
	sheet := testdata(t, "filings", "acme", "sheet.json")
	_, err := runProforma(t, dir, "reconcile", "-q", "-o", outPath, sheet, testdata(t, "filings", "acme", "changes.json"))
	require.NoError(t, err)

	out, err := runProforma(t, dir, "show", outPath, "--baseline", sheet)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Updated")
	assert.Contains(t, out, "Digital assets")
	assert.Contains(t, out, "Applied Updates:")
	assert.Contains(t, out, "Unresolved Updates:")
}

func TestShow_MaxDepth(t *testing.T) {
	out, err := runProforma(t, t.TempDir(), "show", "--max-depth", "1", testdata(t, "filings", "acme", "sheet.json"))
	require.Error(t, err, "Receivables nests two levels")
	assert.Contains(t, out, "sheet.json")
}

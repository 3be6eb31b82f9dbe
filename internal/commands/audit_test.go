package commands_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/proforma/internal/audit"
)

func TestAudit(t *testing.T) {
	dir := newWorkspace(t)

	out, err := runProforma(t, dir, "audit")
	require.NoError(t, err, out)
	assert.Contains(t, out, "No audit entries")

	copyTree(t, testdata(t, "filings", "acme"), filepath.Join(dir, "filings", "acme"))
	out, err = runProforma(t, dir, "reconcile", "-q", "filings/acme/sheet.json", "filings/acme/changes.json")
	require.NoError(t, err, out)

	out, err = runProforma(t, dir, "audit")
	require.NoError(t, err, out)
	assert.Contains(t, out, "2025-06-001")
	assert.Contains(t, out, "2025-06-002")
	assert.Contains(t, out, "assets/Digital assets")

	out, err = runProforma(t, dir, "audit", "--failed")
	require.NoError(t, err, out)
	assert.NotContains(t, out, "2025-06-001")
	assert.Contains(t, out, "unbalanced delta")
	assert.Contains(t, out, "998000.00")

	trail, err := audit.Read(dir)
	require.NoError(t, err)
	runID := trail[0].RunID
	out, err = runProforma(t, dir, "audit", "--run", runID)
	require.NoError(t, err, out)
	assert.Contains(t, out, runID[:strings.IndexByte(runID, '-')])

	out, err = runProforma(t, dir, "audit", "--run", "nope")
	require.NoError(t, err, out)
	assert.Contains(t, out, "No audit entries")
}

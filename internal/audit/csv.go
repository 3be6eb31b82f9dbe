package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Header is the CSV header for audit-log.csv.
const Header = "timestamp,run_id,change_id,effective_date,outcome,reason,imbalance,narrative,citation,materialized"

// LogFile is the audit log path relative to a workspace root.
const LogFile = "logs/audit-log.csv"

const (
	numFields       = 10
	logDir          = "logs"
	colTimestamp    = 0
	colRunID        = 1
	colChangeID     = 2
	colEffective    = 3
	colOutcome      = 4
	colReason       = 5
	colImbalance    = 6
	colNarrative    = 7
	colCitation     = 8
	colMaterialized = 9
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colChangeID] = e.ChangeID
	row[colEffective] = e.EffectiveDate
	row[colOutcome] = string(e.Outcome)
	row[colReason] = e.Reason
	if !e.Imbalance.IsZero() {
		row[colImbalance] = e.Imbalance.StringFixed(2)
	}
	row[colNarrative] = e.Narrative
	row[colCitation] = e.Citation
	row[colMaterialized] = strings.Join(e.Materialized, ";")
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	var imbalance decimal.Decimal
	if record[colImbalance] != "" {
		imbalance, err = decimal.NewFromString(record[colImbalance])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing imbalance %q: %w", record[colImbalance], err)
		}
	}

	var materialized []string
	if record[colMaterialized] != "" {
		materialized = strings.Split(record[colMaterialized], ";")
	}

	return Entry{
		Timestamp:     ts,
		RunID:         record[colRunID],
		ChangeID:      record[colChangeID],
		EffectiveDate: record[colEffective],
		Outcome:       Outcome(record[colOutcome]),
		Reason:        record[colReason],
		Imbalance:     imbalance,
		Narrative:     record[colNarrative],
		Citation:      record[colCitation],
		Materialized:  materialized,
	}, nil
}

// Append writes entries to <root>/logs/audit-log.csv, creating the file and header if needed.
func Append(root string, entries []Entry) error {
	dir := filepath.Join(root, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(root, filepath.FromSlash(LogFile))
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <root>/logs/audit-log.csv.
// Returns nil if the file does not exist.
func Read(root string) (Trail, error) {
	path := filepath.Join(root, filepath.FromSlash(LogFile))
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

// ReadRun returns the entries written by one run.
func ReadRun(root, runID string) (Trail, error) {
	all, err := Read(root)
	if err != nil {
		return nil, err
	}
	var out Trail
	for _, e := range all {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

func readEntries(r io.Reader) (Trail, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries Trail
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

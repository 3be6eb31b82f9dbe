package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/proforma/internal/model"
)

// Header is the CSV header for flat change lists. One row per delta; rows
// sharing a change_id form one change.
const Header = "change_id,date,section,line_item,delta,update_log,citation"

const (
	numFields    = 7
	colChangeID  = 0
	colDate      = 1
	colSection   = 2
	colLineItem  = 3
	colDelta     = 4
	colNarrative = 5
	colCitation  = 6
)

// CSVParser reads flat change lists. CSV carries no share counts.
type CSVParser struct{}

func (p *CSVParser) Format() string { return "csv" }

func (p *CSVParser) Parse(r io.Reader) (model.UpdateSummary, error) {
	changes, err := ReadChanges(r)
	if err != nil {
		return model.UpdateSummary{}, err
	}
	return model.UpdateSummary{Changes: changes}, nil
}

// ReadChanges groups rows into changes in order of first appearance. The
// date, narrative and citation of a change come from its first row; later
// rows must agree on the date.
func ReadChanges(r io.Reader) ([]model.Change, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading change CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var changes []model.Change
	index := make(map[string]int)
	for i, rec := range records[1:] {
		row := i + 2
		key := strings.TrimSpace(rec[colChangeID])
		if key == "" {
			return nil, fmt.Errorf("row %d: missing change_id", row)
		}
		d, err := UnmarshalDelta(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		date, err := model.ParseDate(rec[colDate])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		n, ok := index[key]
		if !ok {
			index[key] = len(changes)
			changes = append(changes, model.Change{
				ID:            key,
				EffectiveDate: date,
				Narrative:     rec[colNarrative],
				Citation:      rec[colCitation],
			})
			n = len(changes) - 1
		} else if !changes[n].EffectiveDate.Equal(date.Time) {
			return nil, fmt.Errorf("row %d: change %s dated %s, earlier row says %s", row, key, date, changes[n].EffectiveDate)
		}
		changes[n].Deltas = append(changes[n].Deltas, d)
	}
	return changes, nil
}

// WriteChanges writes changes as flat rows, header first. A change without
// deltas produces no rows.
func WriteChanges(w io.Writer, changes []model.Change) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, c := range changes {
		for _, row := range MarshalChange(c) {
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("writing change %s: %w", c.ID, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalChange converts a change to one row per delta.
func MarshalChange(c model.Change) [][]string {
	rows := make([][]string, 0, len(c.Deltas))
	for _, d := range c.Deltas {
		row := make([]string, numFields)
		row[colChangeID] = c.ID
		row[colDate] = c.EffectiveDate.String()
		row[colSection] = string(d.Section)
		row[colLineItem] = d.Label
		row[colDelta] = d.Adjustment.String()
		row[colNarrative] = c.Narrative
		row[colCitation] = c.Citation
		rows = append(rows, row)
	}
	return rows
}

// UnmarshalDelta reads the section, line item and delta columns of a row.
// Thousands separators in the delta are accepted.
func UnmarshalDelta(record []string) (model.LineDelta, error) {
	if len(record) != numFields {
		return model.LineDelta{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	raw := strings.ReplaceAll(strings.TrimSpace(record[colDelta]), ",", "")
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return model.LineDelta{}, fmt.Errorf("parsing delta %q: %w", record[colDelta], err)
	}
	return model.LineDelta{
		Section:    model.Section(strings.ToLower(strings.TrimSpace(record[colSection]))),
		Label:      strings.TrimSpace(record[colLineItem]),
		Adjustment: amount,
	}, nil
}

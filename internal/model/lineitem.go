package model

import (
	"github.com/shopspring/decimal"
)

// Unit labels what a line item's value counts.
type Unit string

const (
	UnitUSD    Unit = "USD"
	UnitShares Unit = "shares"
)

// LineItem is one reported figure, optionally decomposed into components.
// Values are whole currency units; no thousands scaling happens here.
type LineItem struct {
	Label      string          `json:"line_item" validate:"required"`
	Value      decimal.Decimal `json:"value"`
	Unit       Unit            `json:"unit,omitempty" validate:"omitempty,oneof=USD shares"`
	AsOfDate   string          `json:"as_of_date,omitempty"`
	NoteRef    string          `json:"note_ref,omitempty"`
	Components []LineItem      `json:"components,omitempty" validate:"dive"`
}

// Total returns the item's own value plus the totals of its components.
func (l LineItem) Total() decimal.Decimal {
	total := l.Value
	for _, c := range l.Components {
		total = total.Add(c.Total())
	}
	return total
}

// SetValue replaces the item's own value. Components are left alone.
func (l *LineItem) SetValue(v decimal.Decimal) {
	l.Value = v
}

// IsLeaf reports whether the item has no components.
func (l LineItem) IsLeaf() bool {
	return len(l.Components) == 0
}

// Clone returns a deep copy.
func (l LineItem) Clone() LineItem {
	out := l
	if l.Components != nil {
		out.Components = make([]LineItem, len(l.Components))
		for i, c := range l.Components {
			out.Components[i] = c.Clone()
		}
	}
	return out
}

// checkDepth walks the tree iteratively so a hostile document cannot blow the
// stack before the limit is reached.
func (l LineItem) checkDepth(path string, maxDepth int) error {
	type frame struct {
		item  *LineItem
		path  string
		depth int
	}
	stack := []frame{{item: &l, path: path, depth: 1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth > maxDepth {
			return &StructuralError{Path: f.path, Reason: "line item nesting exceeds maximum depth"}
		}
		if f.item.Label == "" {
			return &StructuralError{Path: f.path, Reason: "line item has an empty label"}
		}
		for i := range f.item.Components {
			c := &f.item.Components[i]
			stack = append(stack, frame{item: c, path: f.path + "/" + c.Label, depth: f.depth + 1})
		}
	}
	return nil
}

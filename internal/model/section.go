package model

// Section classifies a balance sheet table.
type Section string

const (
	SectionAssets      Section = "assets"
	SectionLiabilities Section = "liabilities"
	SectionEquity      Section = "equity"
)

// Sections returns the three kinds in statement order.
func Sections() []Section {
	return []Section{SectionAssets, SectionLiabilities, SectionEquity}
}

// Valid reports whether s is one of the three known kinds.
func (s Section) Valid() bool {
	switch s {
	case SectionAssets, SectionLiabilities, SectionEquity:
		return true
	}
	return false
}

// IsClaim reports whether s sits on the liabilities-plus-equity side.
func (s Section) IsClaim() bool {
	return s == SectionLiabilities || s == SectionEquity
}

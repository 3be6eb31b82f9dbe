package model

import "github.com/shopspring/decimal"

func init() {
	// Amounts are JSON numbers in every document we write, matching the
	// statements and change lists we read.
	decimal.MarshalJSONWithoutQuotes = true
}

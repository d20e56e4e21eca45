package models

import "github.com/shopspring/decimal"

// Position is a derived projection over fill events, keyed by
// (symbol, side). It is never persisted on its own.
type Position struct {
	Symbol     string          `json:"symbol"`
	Side       OrderSide       `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	TotalCost  decimal.Decimal `json:"totalCost"`
}

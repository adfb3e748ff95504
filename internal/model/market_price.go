package model

import "time"

// MarketPrice mirrors the `market_prices` table. Rows are reference data
// published by admins and browsed publicly, so responses are cacheable.
type MarketPrice struct {
	ID             string
	CropName       string
	MarketLocation string
	State          string
	Price          float64
	PriceType      string // Wholesale | Retail
	MarketType     string // BUYER | MANDI
	RecordedDate   time.Time
	CreatedAt      time.Time
}

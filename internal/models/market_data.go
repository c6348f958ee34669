package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is a single period's closing price from a historical-quotes provider
type PricePoint struct {
	Time  time.Time       `json:"time"`
	Close decimal.Decimal `json:"close"`
}

// PriceHistory is an ordered (oldest first) sequence of closes for one instrument
type PriceHistory struct {
	Symbol   string       `json:"symbol"`
	Source   string       `json:"source"`
	Range    string       `json:"range"`
	Interval string       `json:"interval"`
	Points   []PricePoint `json:"points"`
}

// Closes returns the closing prices as float64 in the original order
func Closes(points []PricePoint) []float64 {
	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close.InexactFloat64()
	}
	return closes
}

// LastClose returns the most recent close, or false for an empty history
func (h *PriceHistory) LastClose() (float64, bool) {
	if len(h.Points) == 0 {
		return 0, false
	}
	return h.Points[len(h.Points)-1].Close.InexactFloat64(), true
}

// MarketDataRequest represents request parameters for historical market data
type MarketDataRequest struct {
	Symbols  []string `json:"symbols" form:"symbols"`
	Source   string   `json:"source" form:"source"`
	Range    string   `json:"range" form:"range"`
	Interval string   `json:"interval" form:"interval"`
}

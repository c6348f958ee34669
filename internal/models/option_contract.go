package models

import (
	"fmt"
	"strings"
	"time"
)

// OptionType is the right of an option contract
type OptionType string

const (
	OptionTypeCall OptionType = "call"
	OptionTypePut  OptionType = "put"
)

// ExpirationLayout is the date layout used by providers for expiration dates
const ExpirationLayout = "2006-01-02"

// ParseOptionType normalizes provider spellings ("C", "CALL", "call") into an OptionType
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c", "calls":
		return OptionTypeCall, nil
	case "put", "p", "puts":
		return OptionTypePut, nil
	default:
		return "", fmt.Errorf("unknown option type %q", s)
	}
}

// OptionContract is one raw row of an option chain as supplied by an options-data provider
type OptionContract struct {
	Symbol            string     `json:"symbol"`
	UnderlyingSymbol  string     `json:"underlying_symbol"`
	StrikePrice       float64    `json:"strike_price"`
	ExpirationDate    time.Time  `json:"expiration_date"`
	Type              OptionType `json:"type"`
	OpenInterest      int64      `json:"open_interest"`
	Volume            int64      `json:"volume"`
	BidPrice          float64    `json:"bid_price"`
	AskPrice          float64    `json:"ask_price"`
	LastPrice         float64    `json:"last_price"`
	ImpliedVolatility float64    `json:"implied_volatility"`
	// Delta is set when the feed publishes greeks; it takes precedence over a computed delta.
	Delta *float64 `json:"delta,omitempty"`
}

// IsCall reports whether the contract is a call
func (c *OptionContract) IsCall() bool {
	return c.Type == OptionTypeCall
}

// OptionChain groups the contracts of one underlying
type OptionChain struct {
	UnderlyingSymbol string           `json:"underlying_symbol"`
	Source           string           `json:"source"`
	Contracts        []OptionContract `json:"contracts"`
}

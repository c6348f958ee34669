package options

import (
	"fmt"
	"math"
	"time"

	"github.com/irfndi/market-gateway/internal/models"
)

// Quote is the pricing view of a contract derived from its bid, ask and last trade
type Quote struct {
	Premium   float64
	Mid       float64
	Spread    float64
	SpreadPct float64
	TwoSided  bool
}

// Premium is the mid price when both sides are quoted, else the last trade price.
// Without any positive price it fails with NoPricingData.
func Premium(c models.OptionContract) (float64, error) {
	q, err := QuoteOf(c)
	if err != nil {
		return 0, err
	}
	return q.Premium, nil
}

// QuoteOf derives premium, mid and spread figures for a contract.
// A crossed book (ask below bid) is not a usable two-sided quote and falls back to the last trade.
func QuoteOf(c models.OptionContract) (Quote, error) {
	if c.BidPrice > 0 && c.AskPrice >= c.BidPrice && !math.IsInf(c.AskPrice, 0) {
		mid := (c.BidPrice + c.AskPrice) / 2
		spread := c.AskPrice - c.BidPrice
		return Quote{
			Premium:   mid,
			Mid:       mid,
			Spread:    spread,
			SpreadPct: spread / mid,
			TwoSided:  true,
		}, nil
	}
	if c.LastPrice > 0 && !math.IsInf(c.LastPrice, 0) {
		return Quote{Premium: c.LastPrice, Mid: c.LastPrice}, nil
	}
	return Quote{}, models.NewEngineError(models.KindNoPricingData, c.Symbol,
		fmt.Sprintf("bid %v ask %v last %v", c.BidPrice, c.AskPrice, c.LastPrice))
}

// DaysToExpiration is the fractional number of calendar days from now until
// 00:00 UTC on the expiration date. Negative once the date has passed.
func DaysToExpiration(expiration, now time.Time) float64 {
	y, m, d := expiration.Date()
	expiry := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return expiry.Sub(now).Hours() / 24
}

// ContractDelta prefers a feed-supplied delta and otherwise computes Black-Scholes
// from the contract's implied volatility. The bool reports whether the feed value was used.
func ContractDelta(c models.OptionContract, spot, dteDays, rfAnnual float64) (float64, bool, error) {
	if c.Delta != nil && !math.IsNaN(*c.Delta) && !math.IsInf(*c.Delta, 0) {
		return *c.Delta, true, nil
	}
	delta, err := BlackScholesDelta(spot, c.StrikePrice, dteDays/DaysPerYear, c.ImpliedVolatility, rfAnnual, c.Type)
	if err != nil {
		return 0, false, models.WithSymbol(err, c.Symbol)
	}
	return delta, false, nil
}

// ContractScore is composite * |delta| * (spot / premium) / (1 + dte/30)
func ContractScore(composite, delta, spot, premium, dteDays float64) float64 {
	if premium <= 0 {
		return 0
	}
	return composite * math.Abs(delta) * (spot / premium) / (1 + dteDays/30)
}

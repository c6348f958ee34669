package options

import (
	"time"

	"github.com/irfndi/market-gateway/internal/models"
	"github.com/irfndi/market-gateway/internal/quant"
)

// Delta sources reported on a scored option
const (
	DeltaSourceFeed         = "feed"
	DeltaSourceBlackScholes = "black_scholes"
)

// Underlying is the resolved state of an underlying instrument needed to score its options.
// Metrics is nil when they could not be computed; Err then carries the reason.
type Underlying struct {
	Symbol  string
	Spot    float64
	Metrics *quant.RiskMetrics
	Err     error
}

// HasMetrics reports whether contracts on this underlying can be scored
func (u Underlying) HasMetrics() bool {
	return u.Metrics != nil && u.Spot > 0
}

// UnderlyingFromPrices computes metrics from a close series and uses the last close as spot.
// Failures are kept on the returned value rather than returned.
func UnderlyingFromPrices(symbol string, closes []float64, p quant.Params, w quant.CompositeWeights) Underlying {
	u := Underlying{Symbol: symbol}
	if len(closes) > 0 {
		u.Spot = closes[len(closes)-1]
	}
	m, err := quant.ComputeRiskMetrics(closes, p, w)
	if err != nil {
		u.Err = models.WithSymbol(err, symbol)
		return u
	}
	u.Metrics = &m
	return u
}

// ScoredOption is a contract together with everything derived while ranking it
type ScoredOption struct {
	Symbol            string                 `json:"symbol"`
	Contract          string                 `json:"contract"`
	Side              models.OptionType      `json:"side"`
	Strike            float64                `json:"strike"`
	Expiration        string                 `json:"expiration"`
	DTEDays           float64                `json:"dte_days"`
	Premium           float64                `json:"premium"`
	Bid               float64                `json:"bid"`
	Ask               float64                `json:"ask"`
	Last              float64                `json:"last"`
	Mid               float64                `json:"mid"`
	Spread            float64                `json:"spread"`
	SpreadPct         float64                `json:"spread_pct"`
	ImpliedVol        float64                `json:"implied_vol"`
	Delta             float64                `json:"delta"`
	DeltaSource       string                 `json:"delta_source"`
	Leverage          float64                `json:"leverage"`
	EffectiveLeverage float64                `json:"effective_leverage"`
	StrikeRatio       float64                `json:"strike_ratio"`
	OpenInterest      int64                  `json:"open_interest"`
	Volume            int64                  `json:"volume"`
	Score             float64                `json:"score"`
	UnderlyingSpot    float64                `json:"underlying_spot"`
	UnderlyingMetrics *quant.RiskMetrics     `json:"underlying_metrics,omitempty"`
	Undervalued       *UndervaluedIndicators `json:"undervalued_indicators,omitempty"`

	twoSided bool
}

// TwoSided reports whether the premium came from a bid/ask mid
func (s ScoredOption) TwoSided() bool {
	return s.twoSided
}

// ScoreContract values one contract against its underlying without applying any filter
func ScoreContract(c models.OptionContract, u Underlying, now time.Time, rfAnnual float64) (ScoredOption, error) {
	if !u.HasMetrics() {
		return ScoredOption{}, models.NewEngineError(models.KindMissingUnderlyingMetrics, u.Symbol, "")
	}
	dte := DaysToExpiration(c.ExpirationDate, now)
	if dte <= 0 {
		return ScoredOption{}, models.NewEngineError(models.KindExpiredContract, c.Symbol, "")
	}
	q, err := QuoteOf(c)
	if err != nil {
		return ScoredOption{}, err
	}
	delta, fromFeed, err := ContractDelta(c, u.Spot, dte, rfAnnual)
	if err != nil {
		return ScoredOption{}, err
	}
	return buildScored(c, u, q, dte, delta, fromFeed), nil
}

func buildScored(c models.OptionContract, u Underlying, q Quote, dte, delta float64, fromFeed bool) ScoredOption {
	source := DeltaSourceBlackScholes
	if fromFeed {
		source = DeltaSourceFeed
	}
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	return ScoredOption{
		Symbol:            u.Symbol,
		Contract:          c.Symbol,
		Side:              c.Type,
		Strike:            c.StrikePrice,
		Expiration:        c.ExpirationDate.Format(models.ExpirationLayout),
		DTEDays:           dte,
		Premium:           q.Premium,
		Bid:               c.BidPrice,
		Ask:               c.AskPrice,
		Last:              c.LastPrice,
		Mid:               q.Mid,
		Spread:            q.Spread,
		SpreadPct:         q.SpreadPct,
		ImpliedVol:        c.ImpliedVolatility,
		Delta:             delta,
		DeltaSource:       source,
		Leverage:          u.Spot / q.Premium,
		EffectiveLeverage: abs * u.Spot / q.Premium,
		StrikeRatio:       c.StrikePrice / u.Spot,
		OpenInterest:      c.OpenInterest,
		Volume:            c.Volume,
		Score:             ContractScore(u.Metrics.CompositeScore, delta, u.Spot, q.Premium, dte),
		UnderlyingSpot:    u.Spot,
		UnderlyingMetrics: u.Metrics,
		twoSided:          q.TwoSided,
	}
}

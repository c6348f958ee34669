package options

import (
	"math"
	"sort"
	"time"

	"github.com/irfndi/market-gateway/internal/models"
)

// RankRequest is everything one ranking pass needs. Underlyings are keyed by the
// contracts' UnderlyingSymbol. A nil Undervalued skips the indicators.
type RankRequest struct {
	Contracts      []models.OptionContract
	Underlyings    map[string]Underlying
	Filters        FilterCriteria
	Limit          int
	PerSymbolLimit int
	Now            time.Time
	RiskFreeRate   float64
	Undervalued    *UndervaluedConfig
}

// Validate checks the request-level configuration
func (r RankRequest) Validate() error {
	if r.Limit < 0 {
		return models.InvalidConfigf("limit must be non-negative, got %d", r.Limit)
	}
	if r.PerSymbolLimit < 0 {
		return models.InvalidConfigf("per_symbol_limit must be non-negative, got %d", r.PerSymbolLimit)
	}
	if math.IsNaN(r.RiskFreeRate) || math.IsInf(r.RiskFreeRate, 0) {
		return models.InvalidConfigf("rf_annual must be finite")
	}
	if r.Undervalued != nil {
		if err := r.Undervalued.Validate(); err != nil {
			return err
		}
	}
	return r.Filters.Validate()
}

// RankResult holds the ranked contracts, one error per underlying that could not
// be scored and a count of contracts dropped for data problems, by kind.
type RankResult struct {
	Options []ScoredOption           `json:"options"`
	Errors  []models.SymbolError     `json:"errors"`
	Dropped map[models.ErrorKind]int `json:"dropped,omitempty"`
}

// Rank filters, scores, sorts and truncates option contracts.
// Filters run cheapest first: expiry, side, strike ratio, premium, volume and
// open interest, spread, then delta. Limit and PerSymbolLimit of 0 mean no cap.
func Rank(req RankRequest) (*RankResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	f := req.Filters

	result := &RankResult{
		Options: make([]ScoredOption, 0),
		Errors:  make([]models.SymbolError, 0),
		Dropped: make(map[models.ErrorKind]int),
	}
	reported := make(map[string]bool)
	drop := func(err error) {
		result.Dropped[models.KindOf(err)]++
	}

	for _, c := range req.Contracts {
		u, ok := req.Underlyings[c.UnderlyingSymbol]
		if !ok || !u.HasMetrics() {
			if !reported[c.UnderlyingSymbol] {
				reported[c.UnderlyingSymbol] = true
				result.Errors = append(result.Errors, MissingMetricsError(c.UnderlyingSymbol, u))
			}
			continue
		}
		if u.Symbol == "" {
			u.Symbol = c.UnderlyingSymbol
		}

		dte := DaysToExpiration(c.ExpirationDate, now)
		if dte <= 0 {
			result.Dropped[models.KindExpiredContract]++
			continue
		}
		if dte < f.MinDTE || dte > f.MaxDTE {
			continue
		}
		if !f.Side.Matches(c.Type) {
			continue
		}
		if !within(c.StrikePrice/u.Spot, f.MinStrikeRatio, f.MaxStrikeRatio) {
			continue
		}

		q, err := QuoteOf(c)
		if err != nil {
			drop(err)
			continue
		}
		if !within(q.Premium, f.MinPremium, f.MaxPremium) {
			continue
		}
		if !atLeast(c.Volume, f.MinVolume) || !atLeast(c.OpenInterest, f.MinOpenInterest) {
			continue
		}
		// one-sided quotes have no measurable spread and pass the ceiling
		if f.MaxSpreadPct != nil && q.TwoSided && q.SpreadPct > *f.MaxSpreadPct {
			continue
		}

		delta, fromFeed, err := ContractDelta(c, u.Spot, dte, req.RiskFreeRate)
		if err != nil {
			drop(err)
			continue
		}
		if !within(math.Abs(delta), f.MinDelta, f.MaxDelta) {
			continue
		}

		scored := buildScored(c, u, q, dte, delta, fromFeed)
		if req.Undervalued != nil {
			ind := ComputeUndervaluedIndicators(scored, u.Metrics.CompositeScore, *req.Undervalued)
			scored.Undervalued = &ind
		}
		result.Options = append(result.Options, scored)
	}

	SortScored(result.Options)
	result.Options = truncate(result.Options, req.Limit, req.PerSymbolLimit)

	sort.Slice(result.Errors, func(i, j int) bool {
		return result.Errors[i].Symbol < result.Errors[j].Symbol
	})
	return result, nil
}

// SortScored orders by score desc, then open interest desc, then contract symbol asc
func SortScored(opts []ScoredOption) {
	sort.SliceStable(opts, func(i, j int) bool {
		a, b := opts[i], opts[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.OpenInterest != b.OpenInterest {
			return a.OpenInterest > b.OpenInterest
		}
		return a.Contract < b.Contract
	})
}

func truncate(sorted []ScoredOption, limit, perSymbol int) []ScoredOption {
	out := sorted
	if perSymbol > 0 {
		counts := make(map[string]int)
		out = make([]ScoredOption, 0, len(sorted))
		for _, o := range sorted {
			if counts[o.Symbol] >= perSymbol {
				continue
			}
			counts[o.Symbol]++
			out = append(out, o)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MissingMetricsError reports an underlying whose contracts cannot be scored
func MissingMetricsError(symbol string, u Underlying) models.SymbolError {
	err := models.NewEngineError(models.KindMissingUnderlyingMetrics, symbol, "")
	switch {
	case u.Err != nil:
		err.Err = u.Err
	case u.Metrics != nil:
		err.Detail = "no spot price"
	}
	return models.NewSymbolError(symbol, err)
}

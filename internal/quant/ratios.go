package quant

import (
	"math"

	"github.com/irfndi/market-gateway/internal/models"
)

// zeroEpsilon treats dispersion below this as zero so flat series never divide by ~0
const zeroEpsilon = 1e-12

// Params carries the scalar inputs of a metrics computation
type Params struct {
	RiskFreeRate   float64  `json:"rf_annual"`
	TargetReturn   *float64 `json:"target_return_annual,omitempty"`
	PeriodsPerYear int      `json:"periods_per_year"`
}

// Validate rejects parameters that make every computation meaningless
func (p Params) Validate() error {
	if p.PeriodsPerYear <= 0 {
		return models.InvalidConfigf("periods_per_year must be positive, got %d", p.PeriodsPerYear)
	}
	if math.IsNaN(p.RiskFreeRate) || math.IsInf(p.RiskFreeRate, 0) {
		return models.InvalidConfigf("rf_annual must be finite")
	}
	if p.TargetReturn != nil && (math.IsNaN(*p.TargetReturn) || math.IsInf(*p.TargetReturn, 0)) {
		return models.InvalidConfigf("target_return_annual must be finite")
	}
	return nil
}

// RiskFreePerPeriod converts the annual risk-free rate by simple division
func (p Params) RiskFreePerPeriod() float64 {
	return p.RiskFreeRate / float64(p.PeriodsPerYear)
}

// TargetPerPeriod is the downside target per period, defaulting to the risk-free rate
func (p Params) TargetPerPeriod() float64 {
	if p.TargetReturn != nil {
		return *p.TargetReturn / float64(p.PeriodsPerYear)
	}
	return p.RiskFreePerPeriod()
}

// Ratios are the risk-adjusted ratios of one return series
type Ratios struct {
	Sharpe            float64 `json:"sharpe_ratio"`
	Sortino           float64 `json:"sortino_ratio"`
	Calmar            float64 `json:"calmar_ratio"`
	KellyFraction     float64 `json:"kelly_fraction"`
	DownsideDeviation float64 `json:"downside_deviation"`
}

// ComputeRatios derives Sharpe, Sortino, Calmar and the clamped Kelly fraction.
// Degenerate denominators yield 0 rather than NaN or Inf.
func ComputeRatios(s *ReturnSeries, p Params) Ratios {
	ppy := float64(p.PeriodsPerYear)
	annualizer := math.Sqrt(ppy)
	excess := s.Mean() - p.RiskFreePerPeriod()

	var r Ratios

	if sd := s.StdDev(); sd > zeroEpsilon {
		r.Sharpe = excess / sd * annualizer
	}

	dd := s.DownsideDeviation(p.TargetPerPeriod())
	r.DownsideDeviation = dd * annualizer
	if dd > zeroEpsilon {
		r.Sortino = excess / dd * annualizer
	}

	if mdd := s.MaxDrawdown(); mdd != 0 {
		r.Calmar = finiteOrZero(s.CAGR(p.PeriodsPerYear) / math.Abs(mdd))
	}

	r.KellyFraction = KellyFraction(excess, s.Variance())
	return r
}

// KellyFraction is excess/variance on per-period figures, clamped to [0, 1]
func KellyFraction(meanExcess, variance float64) float64 {
	if variance <= zeroEpsilon {
		return 0
	}
	k := meanExcess / variance
	if math.IsNaN(k) {
		return 0
	}
	return math.Max(0, math.Min(1, k))
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

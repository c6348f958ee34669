package quant

// RiskMetrics is the full statistics and ratio set for one instrument
type RiskMetrics struct {
	NPeriods          int     `json:"n_periods"`
	MeanReturn        float64 `json:"mean_return"`
	Volatility        float64 `json:"volatility"`
	DownsideDeviation float64 `json:"downside_deviation"`
	MaxDrawdown       float64 `json:"max_drawdown"`
	CAGR              float64 `json:"cagr"`
	SharpeRatio       float64 `json:"sharpe_ratio"`
	SortinoRatio      float64 `json:"sortino_ratio"`
	CalmarRatio       float64 `json:"calmar_ratio"`
	KellyFraction     float64 `json:"kelly_fraction"`
	CompositeScore    float64 `json:"composite_score"`
}

// ComputeRiskMetrics runs statistics, ratios and the composite score over a price sequence
func ComputeRiskMetrics(prices []float64, p Params, w CompositeWeights) (RiskMetrics, error) {
	if err := p.Validate(); err != nil {
		return RiskMetrics{}, err
	}
	series, err := ComputeReturnSeries(prices)
	if err != nil {
		return RiskMetrics{}, err
	}
	return MetricsFromSeries(series, p, w), nil
}

// MetricsFromSeries computes RiskMetrics for an already validated series
func MetricsFromSeries(s *ReturnSeries, p Params, w CompositeWeights) RiskMetrics {
	ratios := ComputeRatios(s, p)
	return RiskMetrics{
		NPeriods:          s.Len(),
		MeanReturn:        s.Mean(),
		Volatility:        s.Volatility(p.PeriodsPerYear),
		DownsideDeviation: ratios.DownsideDeviation,
		MaxDrawdown:       s.MaxDrawdown(),
		CAGR:              finiteOrZero(s.CAGR(p.PeriodsPerYear)),
		SharpeRatio:       ratios.Sharpe,
		SortinoRatio:      ratios.Sortino,
		CalmarRatio:       ratios.Calmar,
		KellyFraction:     ratios.KellyFraction,
		CompositeScore:    finiteOrZero(CompositeScore(ratios, w)),
	}
}

// Ratios returns the ratio view of the metrics
func (m RiskMetrics) Ratios() Ratios {
	return Ratios{
		Sharpe:            m.SharpeRatio,
		Sortino:           m.SortinoRatio,
		Calmar:            m.CalmarRatio,
		KellyFraction:     m.KellyFraction,
		DownsideDeviation: m.DownsideDeviation,
	}
}

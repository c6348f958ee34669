package options

import (
	"math"

	"github.com/irfndi/market-gateway/internal/models"
)

// UndervaluedConfig calibrates the undervalued-option indicators
type UndervaluedConfig struct {
	LiquidityThreshold  float64 `json:"liquidity_threshold"`
	MaxAcceptableSpread float64 `json:"max_acceptable_spread"`
	MomentumFloor       float64 `json:"momentum_floor"`
	MomentumCeiling     float64 `json:"momentum_ceiling"`
	LiquidityWeight     float64 `json:"liquidity_weight"`
	SpreadWeight        float64 `json:"spread_weight"`
	MomentumWeight      float64 `json:"momentum_weight"`
}

// DefaultUndervaluedConfig uses an open-interest threshold of 500, a 5% spread
// ceiling, a composite momentum range of [0, 3] and equal weights.
func DefaultUndervaluedConfig() UndervaluedConfig {
	return UndervaluedConfig{
		LiquidityThreshold:  500,
		MaxAcceptableSpread: 0.05,
		MomentumFloor:       0,
		MomentumCeiling:     3,
		LiquidityWeight:     1,
		SpreadWeight:        1,
		MomentumWeight:      1,
	}
}

// Validate rejects thresholds and weights that would divide by zero
func (c UndervaluedConfig) Validate() error {
	if c.LiquidityThreshold <= 0 {
		return models.InvalidConfigf("liquidity_threshold must be positive, got %v", c.LiquidityThreshold)
	}
	if c.MaxAcceptableSpread <= 0 {
		return models.InvalidConfigf("max_acceptable_spread must be positive, got %v", c.MaxAcceptableSpread)
	}
	if c.MomentumCeiling <= c.MomentumFloor {
		return models.InvalidConfigf("momentum_ceiling %v must exceed momentum_floor %v", c.MomentumCeiling, c.MomentumFloor)
	}
	if c.LiquidityWeight < 0 || c.SpreadWeight < 0 || c.MomentumWeight < 0 {
		return models.InvalidConfigf("undervalued weights must be non-negative")
	}
	if c.LiquidityWeight+c.SpreadWeight+c.MomentumWeight == 0 {
		return models.InvalidConfigf("undervalued weights must not all be zero")
	}
	return nil
}

// UndervaluedIndicators flag contracts that are liquid, tightly quoted and
// written on an underlying with positive risk-adjusted momentum.
type UndervaluedIndicators struct {
	LiquidityScore          float64 `json:"liquidity_score"`
	SpreadScore             float64 `json:"spread_score"`
	UnderlyingMomentum      float64 `json:"underlying_momentum"`
	OverallUndervaluedScore float64 `json:"overall_undervalued_score"`
	SpreadPercentage        float64 `json:"spread_percentage"`
	OpenInterest            int64   `json:"open_interest"`
	IsLiquid                bool    `json:"is_liquid"`
	IsTightSpread           bool    `json:"is_tight_spread"`
	HasMomentum             bool    `json:"has_momentum"`
}

// ComputeUndervaluedIndicators scores a ranked contract. A one-sided quote has
// no measurable spread and earns a spread score of 0.
func ComputeUndervaluedIndicators(opt ScoredOption, composite float64, cfg UndervaluedConfig) UndervaluedIndicators {
	ind := UndervaluedIndicators{
		SpreadPercentage: opt.SpreadPct,
		OpenInterest:     opt.OpenInterest,
	}

	oi := float64(opt.OpenInterest)
	ind.LiquidityScore = math.Min(1, math.Max(0, oi/cfg.LiquidityThreshold))
	ind.IsLiquid = oi >= cfg.LiquidityThreshold

	if opt.TwoSided() {
		ind.SpreadScore = clamp01(1 - opt.SpreadPct/cfg.MaxAcceptableSpread)
		ind.IsTightSpread = opt.SpreadPct >= 0 && opt.SpreadPct <= cfg.MaxAcceptableSpread
	}

	if !math.IsNaN(composite) && !math.IsInf(composite, 0) {
		ind.UnderlyingMomentum = clamp01((composite - cfg.MomentumFloor) / (cfg.MomentumCeiling - cfg.MomentumFloor))
		ind.HasMomentum = composite > 0
	}

	totalWeight := cfg.LiquidityWeight + cfg.SpreadWeight + cfg.MomentumWeight
	if totalWeight > 0 {
		ind.OverallUndervaluedScore = (cfg.LiquidityWeight*ind.LiquidityScore +
			cfg.SpreadWeight*ind.SpreadScore +
			cfg.MomentumWeight*ind.UnderlyingMomentum) / totalWeight
	}
	return ind
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

package quant

import (
	"context"
	"math"
	"testing"

	"github.com/irfndi/market-gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePrices = []float64{100, 102, 101, 105, 103}

func dailyParams() Params {
	return Params{RiskFreeRate: 0, PeriodsPerYear: DailyPeriodsPerYear}
}

func TestComputeRiskMetrics_ReferenceSeries(t *testing.T) {
	m, err := ComputeRiskMetrics(samplePrices, dailyParams(), DefaultCompositeWeights())
	require.NoError(t, err)

	assert.Equal(t, 4, m.NPeriods)
	assert.InDelta(t, 4.5160790725026585, m.SharpeRatio, 1e-6)
	assert.InDelta(t, 11.394019921171498, m.SortinoRatio, 1e-6)
	assert.InDelta(t, 0.17003677890074909, m.DownsideDeviation, 1e-9)
	assert.InDelta(t, 0.42900100175910455, m.Volatility, 1e-9)
	assert.InDelta(t, -0.01904761904761905, m.MaxDrawdown, 1e-12)
	assert.InDelta(t, 285.49047371641626, m.CalmarRatio, 1e-4)
	assert.Equal(t, 1.0, m.KellyFraction)

	expected := 0.4*m.SharpeRatio + 0.4*m.SortinoRatio + 0.2*m.CalmarRatio
	assert.InDelta(t, expected, m.CompositeScore, 1e-9)
}

func TestComputeRiskMetrics_FlatSeriesIsAllZero(t *testing.T) {
	m, err := ComputeRiskMetrics([]float64{42, 42, 42, 42, 42}, dailyParams(), DefaultCompositeWeights())
	require.NoError(t, err)

	assert.Equal(t, 0.0, m.SharpeRatio)
	assert.Equal(t, 0.0, m.SortinoRatio)
	assert.Equal(t, 0.0, m.CalmarRatio)
	assert.Equal(t, 0.0, m.KellyFraction)
	assert.Equal(t, 0.0, m.CompositeScore)
}

func TestComputeRiskMetrics_MonotonicSeriesHasNoCalmar(t *testing.T) {
	m, err := ComputeRiskMetrics([]float64{10, 11, 12, 13, 14, 15}, dailyParams(), DefaultCompositeWeights())
	require.NoError(t, err)

	assert.Equal(t, 0.0, m.MaxDrawdown)
	assert.Equal(t, 0.0, m.CalmarRatio)
	assert.Greater(t, m.SharpeRatio, 0.0)
	// no return falls below a zero target
	assert.Equal(t, 0.0, m.SortinoRatio)
}

func TestComputeRiskMetrics_RiskFreeRateLowersSharpe(t *testing.T) {
	base, err := ComputeRiskMetrics(samplePrices, dailyParams(), DefaultCompositeWeights())
	require.NoError(t, err)

	p := dailyParams()
	p.RiskFreeRate = 0.05
	withRF, err := ComputeRiskMetrics(samplePrices, p, DefaultCompositeWeights())
	require.NoError(t, err)

	assert.Less(t, withRF.SharpeRatio, base.SharpeRatio)
}

func TestComputeRiskMetrics_TargetReturnOverridesRiskFree(t *testing.T) {
	target := 0.5
	p := dailyParams()
	p.TargetReturn = &target

	m, err := ComputeRiskMetrics(samplePrices, p, DefaultCompositeWeights())
	require.NoError(t, err)

	series, err := ComputeReturnSeries(samplePrices)
	require.NoError(t, err)
	assert.InDelta(t, series.DownsideDeviation(0.5/252)*math.Sqrt(252), m.DownsideDeviation, 1e-12)
}

func TestComputeRiskMetrics_Errors(t *testing.T) {
	_, err := ComputeRiskMetrics([]float64{100}, dailyParams(), DefaultCompositeWeights())
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	_, err = ComputeRiskMetrics([]float64{100, -2, 3}, dailyParams(), DefaultCompositeWeights())
	assert.ErrorIs(t, err, models.ErrInvalidPriceData)

	_, err = ComputeRiskMetrics(samplePrices, Params{PeriodsPerYear: 0}, DefaultCompositeWeights())
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}

func TestKellyFraction(t *testing.T) {
	tests := []struct {
		name     string
		excess   float64
		variance float64
		want     float64
	}{
		{"zero variance", 0.01, 0, 0},
		{"negative edge clamps to zero", -0.01, 0.001, 0},
		{"large edge clamps to one", 0.05, 0.001, 1},
		{"interior value", 0.0005, 0.001, 0.5},
		{"nan excess", math.NaN(), 0.001, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KellyFraction(tt.excess, tt.variance)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestCompositeWeights(t *testing.T) {
	assert.NoError(t, DefaultCompositeWeights().Validate())
	assert.ErrorIs(t, CompositeWeights{Sharpe: -1, Sortino: 1}.Validate(), models.ErrInvalidConfig)
	assert.ErrorIs(t, CompositeWeights{}.Validate(), models.ErrInvalidConfig)
	assert.ErrorIs(t, CompositeWeights{Sharpe: math.NaN()}.Validate(), models.ErrInvalidConfig)

	r := Ratios{Sharpe: 1, Sortino: 2, Calmar: 3}
	assert.InDelta(t, 0.4+0.8+0.6, CompositeScore(r, DefaultCompositeWeights()), 1e-12)
	assert.InDelta(t, 6.0, CompositeScore(r, CompositeWeights{Sharpe: 1, Sortino: 1, Calmar: 1}), 1e-12)
}

func TestComputeAll(t *testing.T) {
	closes := map[string][]float64{
		"AAPL": samplePrices,
		"FLAT": {10, 10, 10},
		"BAD":  {10},
		"NEG":  {10, -1},
	}

	result, err := ComputeAll(context.Background(), closes, dailyParams(), DefaultCompositeWeights(), 2)
	require.NoError(t, err)

	assert.Len(t, result.Metrics, 2)
	assert.Contains(t, result.Metrics, "AAPL")
	assert.Contains(t, result.Metrics, "FLAT")

	require.Len(t, result.Errors, 2)
	assert.ErrorIs(t, result.Errors["BAD"], models.ErrInsufficientData)
	assert.ErrorIs(t, result.Errors["NEG"], models.ErrInvalidPriceData)

	var ee *models.EngineError
	require.ErrorAs(t, result.Errors["BAD"], &ee)
	assert.Equal(t, "BAD", ee.Symbol)

	single, err := ComputeRiskMetrics(samplePrices, dailyParams(), DefaultCompositeWeights())
	require.NoError(t, err)
	assert.Equal(t, single, result.Metrics["AAPL"])
}

func TestComputeAll_RejectsInvalidConfig(t *testing.T) {
	_, err := ComputeAll(context.Background(), map[string][]float64{"A": samplePrices}, dailyParams(), CompositeWeights{}, 0)
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}

func TestComputeAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ComputeAll(ctx, map[string][]float64{"A": samplePrices}, dailyParams(), DefaultCompositeWeights(), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeTechnicalSnapshot(t *testing.T) {
	short := ComputeTechnicalSnapshot([]float64{1, 2, 3})
	assert.Equal(t, 3.0, short.LastClose)
	assert.Nil(t, short.RSI)
	assert.Nil(t, short.SMA)
	assert.Nil(t, short.EMA)

	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	snap := ComputeTechnicalSnapshot(closes)
	require.NotNil(t, snap.SMA)
	require.NotNil(t, snap.AboveSMA)
	assert.True(t, *snap.AboveSMA)
	assert.InDelta(t, 129.5, *snap.SMA, 1e-9)
	require.NotNil(t, snap.EMA)
	assert.Greater(t, *snap.EMA, 120.0)

	assert.Equal(t, TechnicalSnapshot{}, ComputeTechnicalSnapshot(nil))
}

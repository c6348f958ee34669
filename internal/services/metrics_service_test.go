package services

import (
	"context"
	"testing"

	"github.com/irfndi/market-gateway/internal/metrics"
	"github.com/irfndi/market-gateway/internal/models"
	"github.com/irfndi/market-gateway/internal/quant"
	"github.com/irfndi/market-gateway/internal/utils"
	"github.com/irfndi/market-gateway/pkg/providers"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testMetricsRequest() MetricsRequest {
	return MetricsRequest{
		Source:   providers.YahooName,
		Range:    "3mo",
		Interval: "1d",
		Weights:  quant.DefaultCompositeWeights(),
	}
}

func newTestMetricsService(data MarketData, collector *metrics.Collector) *MetricsService {
	logger, _ := test.NewNullLogger()
	return NewMetricsService(data, nil, collector, logger)
}

func TestMetricsRequest_Params(t *testing.T) {
	req := testMetricsRequest()
	assert.Equal(t, 252, req.Params().PeriodsPerYear)

	req.Interval = "1wk"
	assert.Equal(t, 52, req.Params().PeriodsPerYear)

	ppy := 365
	req.PeriodsPerYear = &ppy
	assert.Equal(t, 365, req.Params().PeriodsPerYear)
}

func TestMetricsService_GetMetrics(t *testing.T) {
	data := &MockMarketData{}
	data.On("GetPriceHistory", mock.Anything, "yahoo", "AAPL", "3mo", "1d").
		Return(testHistory("AAPL", trendingCloses(40, 0.01)), nil)

	collector := metrics.NewCollector()
	svc := newTestMetricsService(data, collector)

	got, err := svc.GetMetrics(context.Background(), "AAPL", testMetricsRequest())
	require.NoError(t, err)

	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, 252, got.PeriodsPerYear)
	require.NotNil(t, got.Metrics)
	assert.Equal(t, 39, got.Metrics.NPeriods)
	assert.Greater(t, got.Metrics.MeanReturn, 0.0)
	require.NotNil(t, got.AsOf)
	assert.InDelta(t, trendingCloses(40, 0.01)[39], got.LastPrice, 1e-9)
	require.NotNil(t, got.Technical)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.EngineRuns.WithLabelValues("metrics")))
}

func TestMetricsService_GetMetricsInsufficientData(t *testing.T) {
	data := &MockMarketData{}
	data.On("GetPriceHistory", mock.Anything, "yahoo", "NEW", "3mo", "1d").
		Return(testHistory("NEW", []float64{10}), nil)

	collector := metrics.NewCollector()
	svc := newTestMetricsService(data, collector)

	_, err := svc.GetMetrics(context.Background(), "NEW", testMetricsRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
	assert.Contains(t, err.Error(), "NEW")
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.EngineErrors.WithLabelValues("metrics", string(models.KindInsufficientData))))
}

func TestMetricsService_InvalidRequest(t *testing.T) {
	data := &MockMarketData{}
	svc := newTestMetricsService(data, nil)

	tests := []struct {
		name   string
		mutate func(*MetricsRequest)
	}{
		{"zero weights", func(r *MetricsRequest) { r.Weights = quant.CompositeWeights{} }},
		{"negative weight", func(r *MetricsRequest) { r.Weights.Sharpe = -1 }},
		{"negative periods", func(r *MetricsRequest) { ppy := -5; r.PeriodsPerYear = &ppy }},
		{"zero periods", func(r *MetricsRequest) { ppy := 0; r.PeriodsPerYear = &ppy }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testMetricsRequest()
			tt.mutate(&req)
			_, err := svc.GetMetrics(context.Background(), "AAPL", req)
			assert.ErrorIs(t, err, models.ErrInvalidConfig)
			_, err = svc.RankSymbols(context.Background(), []string{"AAPL"}, req)
			assert.ErrorIs(t, err, models.ErrInvalidConfig)
		})
	}
	data.AssertNotCalled(t, "GetPriceHistory")
}

func TestMetricsService_RankSymbols(t *testing.T) {
	data := &MockMarketData{}
	data.On("GetPriceHistory", mock.Anything, "yahoo", "UP", "3mo", "1d").
		Return(testHistory("UP", trendingCloses(40, 0.01)), nil)
	data.On("GetPriceHistory", mock.Anything, "yahoo", "DOWN", "3mo", "1d").
		Return(testHistory("DOWN", trendingCloses(40, -0.005)), nil)
	data.On("GetPriceHistory", mock.Anything, "yahoo", "GONE", "3mo", "1d").
		Return(nil, &UpstreamError{Provider: "yahoo", Err: providers.ErrNoData})
	data.On("GetPriceHistory", mock.Anything, "yahoo", "SHORT", "3mo", "1d").
		Return(testHistory("SHORT", []float64{5}), nil)

	svc := newTestMetricsService(data, metrics.NewCollector())

	got, err := svc.RankSymbols(context.Background(), []string{"down", "UP", "gone", "up", "SHORT"}, testMetricsRequest())
	require.NoError(t, err)

	require.Len(t, got.Results, 2)
	assert.Equal(t, "UP", got.Results[0].Symbol)
	assert.Equal(t, "DOWN", got.Results[1].Symbol)
	assert.Greater(t, got.Results[0].Metrics.CompositeScore, got.Results[1].Metrics.CompositeScore)

	require.Len(t, got.Errors, 2)
	assert.Equal(t, "GONE", got.Errors[0].Symbol)
	assert.Empty(t, got.Errors[0].Kind)
	assert.Equal(t, "SHORT", got.Errors[1].Symbol)
	assert.Equal(t, models.KindInsufficientData, got.Errors[1].Kind)

	// duplicates are fetched once
	data.AssertNumberOfCalls(t, "GetPriceHistory", 4)
}

func TestMetricsService_RankSymbolsRequiresSymbols(t *testing.T) {
	svc := newTestMetricsService(&MockMarketData{}, nil)

	_, err := svc.RankSymbols(context.Background(), []string{" ", ""}, testMetricsRequest())
	assert.True(t, utils.IsValidationError(err))
}

func TestMetricsService_RankSymbolsCancelled(t *testing.T) {
	svc := newTestMetricsService(&MockMarketData{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.RankSymbols(ctx, []string{"AAPL"}, testMetricsRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

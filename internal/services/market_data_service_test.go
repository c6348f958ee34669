package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/irfndi/market-gateway/internal/cache"
	"github.com/irfndi/market-gateway/internal/metrics"
	"github.com/irfndi/market-gateway/internal/models"
	"github.com/irfndi/market-gateway/internal/utils"
	"github.com/irfndi/market-gateway/pkg/providers"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestMarketCache(t *testing.T) *cache.RedisMarketCache {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		client.Close()
		s.Close()
	})
	logger, _ := test.NewNullLogger()
	return cache.NewRedisMarketCache(client, cache.TTLs{
		Prices:   time.Minute,
		Chains:   time.Minute,
		Trending: time.Minute,
	}, logger)
}

// trendingCloses builds n closes growing by g per period with a small alternating wobble
func trendingCloses(n int, g float64) []float64 {
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		wobble := 1.01
		if i%2 == 1 {
			wobble = 0.99
		}
		closes[i] = price * wobble
		price *= 1 + g
	}
	return closes
}

func testHistory(symbol string, closes []float64) *models.PriceHistory {
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	points := make([]models.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = models.PricePoint{Time: start.AddDate(0, 0, i), Close: decimal.NewFromFloat(c)}
	}
	return &models.PriceHistory{Symbol: symbol, Source: providers.YahooName, Range: "3mo", Interval: "1d", Points: points}
}

func newTestMarketDataService(cfg MarketDataServiceConfig) *MarketDataService {
	logger, _ := test.NewNullLogger()
	cfg.Logger = logger
	return NewMarketDataService(cfg)
}

func TestMarketDataService_PriceHistoryReadsThroughCache(t *testing.T) {
	provider := &MockHistoryProvider{ProviderName: providers.YahooName}
	provider.On("FetchHistory", mock.Anything, "AAPL", "3mo", "1d").
		Return(testHistory("AAPL", trendingCloses(30, 0.01)), nil).Once()

	collector := metrics.NewCollector()
	svc := newTestMarketDataService(MarketDataServiceConfig{
		HistoryProviders: []providers.HistoryProvider{provider},
		Cache:            newTestMarketCache(t),
		Collector:        collector,
	})

	ctx := context.Background()
	first, err := svc.GetPriceHistory(ctx, "Yahoo", " aapl ", "3MO", "1d")
	require.NoError(t, err)
	second, err := svc.GetPriceHistory(ctx, "yahoo", "AAPL", "3mo", "1d")
	require.NoError(t, err)

	assert.Equal(t, len(first.Points), len(second.Points))
	assert.True(t, first.Points[29].Close.Equal(second.Points[29].Close))
	provider.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CacheOperations.WithLabelValues(cache.NamespacePrices, "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CacheOperations.WithLabelValues(cache.NamespacePrices, "hit")))
}

func TestMarketDataService_PriceHistoryValidation(t *testing.T) {
	svc := newTestMarketDataService(MarketDataServiceConfig{
		HistoryProviders: []providers.HistoryProvider{&MockHistoryProvider{ProviderName: providers.YahooName}},
	})

	tests := []struct {
		name     string
		source   string
		symbol   string
		rng      string
		interval string
		field    string
	}{
		{"unknown source", "bloomberg", "AAPL", "3mo", "1d", "source"},
		{"bad range", "yahoo", "AAPL", "10y", "1d", "range"},
		{"bad interval", "yahoo", "AAPL", "3mo", "1h", "interval"},
		{"empty symbol", "yahoo", "  ", "3mo", "1d", "symbol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetPriceHistory(context.Background(), tt.source, tt.symbol, tt.rng, tt.interval)
			require.Error(t, err)
			var verr *utils.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestMarketDataService_PriceHistoryUpstreamFailure(t *testing.T) {
	provider := &MockHistoryProvider{ProviderName: providers.KrakenName}
	provider.On("FetchHistory", mock.Anything, "XBTUSD", "1mo", "1d").Return(nil, providers.ErrNoData)

	svc := newTestMarketDataService(MarketDataServiceConfig{
		HistoryProviders: []providers.HistoryProvider{provider},
	})

	_, err := svc.GetPriceHistory(context.Background(), "kraken", "xbt-usd", "1mo", "1d")
	require.Error(t, err)
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, providers.KrakenName, upstream.Provider)
	assert.ErrorIs(t, err, providers.ErrNoData)
}

func TestMarketDataService_PriceHistoryRetriesThroughRecovery(t *testing.T) {
	provider := &MockHistoryProvider{ProviderName: providers.YahooName}
	provider.On("FetchHistory", mock.Anything, "MSFT", "3mo", "1d").Return(nil, errUpstream).Once()
	provider.On("FetchHistory", mock.Anything, "MSFT", "3mo", "1d").Return(testHistory("MSFT", trendingCloses(10, 0)), nil).Once()

	recovery, sleeps := newTestRecovery(RetryPolicy{MaxRetries: 2, InitialDelay: 10 * time.Millisecond, BackoffFactor: 2}, nil)
	svc := newTestMarketDataService(MarketDataServiceConfig{
		HistoryProviders: []providers.HistoryProvider{provider},
		Recovery:         recovery,
	})

	h, err := svc.GetPriceHistory(context.Background(), "yahoo", "msft", "3mo", "1d")
	require.NoError(t, err)
	assert.Len(t, h.Points, 10)
	assert.Len(t, *sleeps, 1)
	provider.AssertExpectations(t)
}

func TestMarketDataService_OptionChainFallsBack(t *testing.T) {
	chain := &models.OptionChain{
		UnderlyingSymbol: "AAPL",
		Source:           providers.YahooName,
		Contracts:        []models.OptionContract{{Symbol: "AAPL250321C00200000", UnderlyingSymbol: "AAPL"}},
	}
	alpaca := &MockChainProvider{ProviderName: providers.AlpacaName}
	alpaca.On("FetchOptionChain", mock.Anything, "AAPL").Return(nil, &providers.StatusError{Provider: "alpaca", StatusCode: 403})
	yahoo := &MockChainProvider{ProviderName: providers.YahooName}
	yahoo.On("FetchOptionChain", mock.Anything, "AAPL").Return(chain, nil).Once()

	svc := newTestMarketDataService(MarketDataServiceConfig{
		ChainProviders: []providers.ChainProvider{alpaca, yahoo},
		Cache:          newTestMarketCache(t),
	})

	got, err := svc.GetOptionChain(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, providers.YahooName, got.Source)
	require.Len(t, got.Contracts, 1)

	// the yahoo chain now comes from the cache; alpaca is still asked first
	_, err = svc.GetOptionChain(context.Background(), "AAPL")
	require.NoError(t, err)
	alpaca.AssertNumberOfCalls(t, "FetchOptionChain", 2)
	yahoo.AssertExpectations(t)
}

func TestMarketDataService_OptionChainAllFail(t *testing.T) {
	first := &MockChainProvider{ProviderName: providers.AlpacaName}
	first.On("FetchOptionChain", mock.Anything, "TSLA").Return(nil, errUpstream)
	second := &MockChainProvider{ProviderName: providers.YahooName}
	second.On("FetchOptionChain", mock.Anything, "TSLA").Return(nil, providers.ErrNoData)

	svc := newTestMarketDataService(MarketDataServiceConfig{
		ChainProviders: []providers.ChainProvider{first, second},
	})

	_, err := svc.GetOptionChain(context.Background(), "TSLA")
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, providers.YahooName, upstream.Provider)
	assert.ErrorIs(t, err, providers.ErrNoData)
}

func TestMarketDataService_OptionChainWithoutProviders(t *testing.T) {
	svc := newTestMarketDataService(MarketDataServiceConfig{})

	_, err := svc.GetOptionChain(context.Background(), "AAPL")
	var upstream *UpstreamError
	assert.True(t, errors.As(err, &upstream))

	_, err = svc.GetOptionChain(context.Background(), " ")
	assert.True(t, utils.IsValidationError(err))
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "AAPL", NormalizeSymbol(providers.YahooName, " aapl"))
	assert.Equal(t, "BRK-B", NormalizeSymbol(providers.YahooName, "brk-b"))
	assert.Equal(t, "XBTUSD", NormalizeSymbol(providers.KrakenName, "xbt/usd"))
	assert.Equal(t, "ETHUSD", NormalizeSymbol(providers.KrakenName, "ETH-USD"))
}

func TestMarketDataService_Sources(t *testing.T) {
	svc := newTestMarketDataService(MarketDataServiceConfig{
		HistoryProviders: []providers.HistoryProvider{
			&MockHistoryProvider{ProviderName: providers.YahooName},
			&MockHistoryProvider{ProviderName: providers.KrakenName},
		},
	})
	assert.Equal(t, []string{"kraken", "yahoo"}, svc.Sources())
}

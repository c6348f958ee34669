package services

import (
	"context"

	"github.com/irfndi/market-gateway/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockMarketData implements MarketData for testing within the services package
type MockMarketData struct {
	mock.Mock
}

func (m *MockMarketData) GetPriceHistory(ctx context.Context, source, symbol, rangeLabel, interval string) (*models.PriceHistory, error) {
	args := m.Called(ctx, source, symbol, rangeLabel, interval)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PriceHistory), args.Error(1)
}

func (m *MockMarketData) GetOptionChain(ctx context.Context, underlying string) (*models.OptionChain, error) {
	args := m.Called(ctx, underlying)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OptionChain), args.Error(1)
}

// MockHistoryProvider implements providers.HistoryProvider
type MockHistoryProvider struct {
	mock.Mock
	ProviderName string
}

func (m *MockHistoryProvider) Name() string { return m.ProviderName }

func (m *MockHistoryProvider) FetchHistory(ctx context.Context, symbol, rangeLabel, interval string) (*models.PriceHistory, error) {
	args := m.Called(ctx, symbol, rangeLabel, interval)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PriceHistory), args.Error(1)
}

// MockChainProvider implements providers.ChainProvider
type MockChainProvider struct {
	mock.Mock
	ProviderName string
}

func (m *MockChainProvider) Name() string { return m.ProviderName }

func (m *MockChainProvider) FetchOptionChain(ctx context.Context, underlying string) (*models.OptionChain, error) {
	args := m.Called(ctx, underlying)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OptionChain), args.Error(1)
}

// MockTrendingProvider implements providers.TrendingProvider
type MockTrendingProvider struct {
	mock.Mock
	ProviderName string
}

func (m *MockTrendingProvider) Name() string { return m.ProviderName }

func (m *MockTrendingProvider) FetchTrending(ctx context.Context, limit int) ([]string, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

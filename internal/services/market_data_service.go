package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/irfndi/market-gateway/internal/cache"
	"github.com/irfndi/market-gateway/internal/metrics"
	"github.com/irfndi/market-gateway/internal/models"
	"github.com/irfndi/market-gateway/internal/telemetry"
	"github.com/irfndi/market-gateway/internal/utils"
	"github.com/irfndi/market-gateway/pkg/providers"
	"github.com/sirupsen/logrus"
)

// MarketData is the read side the engine services depend on
type MarketData interface {
	GetPriceHistory(ctx context.Context, source, symbol, rangeLabel, interval string) (*models.PriceHistory, error)
	GetOptionChain(ctx context.Context, underlying string) (*models.OptionChain, error)
}

// UpstreamError is a provider failure surfaced to callers. Handlers answer it with 502,
// or 404 when the provider simply had no data for the symbol.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// MarketDataServiceConfig wires the providers and the resilience stack
type MarketDataServiceConfig struct {
	HistoryProviders []providers.HistoryProvider
	// ChainProviders are tried in order until one answers
	ChainProviders []providers.ChainProvider
	Cache          *cache.RedisMarketCache
	Recovery       *ErrorRecoveryManager
	Collector      *metrics.Collector
	Logger         logrus.FieldLogger
}

// MarketDataService reads price histories and option chains through the cache
type MarketDataService struct {
	historyProviders map[string]providers.HistoryProvider
	chainProviders   []providers.ChainProvider
	cache            *cache.RedisMarketCache
	recovery         *ErrorRecoveryManager
	collector        *metrics.Collector
	tracer           *telemetry.BusinessTracer
	logger           logrus.FieldLogger
}

var _ MarketData = (*MarketDataService)(nil)

// NewMarketDataService creates a new market data service
func NewMarketDataService(cfg MarketDataServiceConfig) *MarketDataService {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	history := make(map[string]providers.HistoryProvider, len(cfg.HistoryProviders))
	for _, p := range cfg.HistoryProviders {
		history[p.Name()] = p
	}
	return &MarketDataService{
		historyProviders: history,
		chainProviders:   cfg.ChainProviders,
		cache:            cfg.Cache,
		recovery:         cfg.Recovery,
		collector:        cfg.Collector,
		tracer:           telemetry.NewBusinessTracer(),
		logger:           logger.WithField("service", "market_data"),
	}
}

// NormalizeSymbol upper-cases a ticker; crypto pairs lose their separators
func NormalizeSymbol(source, symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if source == providers.KrakenName {
		symbol = strings.NewReplacer("-", "", "/", "").Replace(symbol)
	}
	return symbol
}

// GetPriceHistory returns closes for symbol from the named source
func (s *MarketDataService) GetPriceHistory(ctx context.Context, source, symbol, rangeLabel, interval string) (*models.PriceHistory, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	rangeLabel = strings.ToLower(strings.TrimSpace(rangeLabel))
	interval = strings.ToLower(strings.TrimSpace(interval))

	provider, ok := s.historyProviders[source]
	if !ok {
		return nil, utils.NewFieldError("source", "unsupported source %q", source)
	}
	if err := providers.ValidateRange(rangeLabel); err != nil {
		return nil, utils.NewFieldError("range", "%v", err)
	}
	if err := providers.ValidateInterval(interval); err != nil {
		return nil, utils.NewFieldError("interval", "%v", err)
	}
	symbol = NormalizeSymbol(source, symbol)
	if symbol == "" {
		return nil, utils.NewFieldError("symbol", "is required")
	}

	start := time.Now()
	ctx, span := s.tracer.TraceMarketDataFetch(ctx, source, "history", symbol)
	defer span.End()

	if cached, ok := s.cache.GetPriceHistory(ctx, source, symbol, rangeLabel, interval); ok {
		s.collector.ObserveCache(cache.NamespacePrices, true)
		s.tracer.RecordMarketDataFetch(span, telemetry.MarketDataSummary{CacheHit: true, Items: len(cached.Points), Duration: time.Since(start)})
		return cached, nil
	}
	if s.cache != nil {
		s.collector.ObserveCache(cache.NamespacePrices, false)
	}

	var history *models.PriceHistory
	err := s.execute(ctx, source, "history", func(ctx context.Context) error {
		var ferr error
		history, ferr = provider.FetchHistory(ctx, symbol, rangeLabel, interval)
		return ferr
	})
	if err != nil {
		s.tracer.RecordMarketDataFetch(span, telemetry.MarketDataSummary{Duration: time.Since(start), Err: err})
		s.logger.WithError(err).WithFields(logrus.Fields{
			"source": source,
			"symbol": symbol,
		}).Warn("Failed to fetch price history")
		return nil, &UpstreamError{Provider: source, Err: err}
	}

	s.cache.SetPriceHistory(ctx, history)
	s.tracer.RecordMarketDataFetch(span, telemetry.MarketDataSummary{Items: len(history.Points), Duration: time.Since(start)})
	return history, nil
}

// GetOptionChain returns the first chain any configured provider can supply
func (s *MarketDataService) GetOptionChain(ctx context.Context, underlying string) (*models.OptionChain, error) {
	underlying = NormalizeSymbol("", underlying)
	if underlying == "" {
		return nil, utils.NewFieldError("symbol", "is required")
	}
	if len(s.chainProviders) == 0 {
		return nil, &UpstreamError{Provider: "options", Err: errors.New("no option chain provider configured")}
	}

	var lastErr *UpstreamError
	for _, provider := range s.chainProviders {
		chain, err := s.fetchChain(ctx, provider, underlying)
		if err == nil {
			return chain, nil
		}
		lastErr = &UpstreamError{Provider: provider.Name(), Err: err}
		if ctx.Err() != nil {
			break
		}
		s.logger.WithError(err).WithFields(logrus.Fields{
			"provider": provider.Name(),
			"symbol":   underlying,
		}).Warn("Option chain provider failed, trying next")
	}
	return nil, lastErr
}

func (s *MarketDataService) fetchChain(ctx context.Context, provider providers.ChainProvider, underlying string) (*models.OptionChain, error) {
	start := time.Now()
	ctx, span := s.tracer.TraceMarketDataFetch(ctx, provider.Name(), "option_chain", underlying)
	defer span.End()

	if cached, ok := s.cache.GetOptionChain(ctx, provider.Name(), underlying); ok {
		s.collector.ObserveCache(cache.NamespaceChains, true)
		s.tracer.RecordMarketDataFetch(span, telemetry.MarketDataSummary{CacheHit: true, Items: len(cached.Contracts), Duration: time.Since(start)})
		return cached, nil
	}
	if s.cache != nil {
		s.collector.ObserveCache(cache.NamespaceChains, false)
	}

	var chain *models.OptionChain
	err := s.execute(ctx, provider.Name(), "option_chain", func(ctx context.Context) error {
		var ferr error
		chain, ferr = provider.FetchOptionChain(ctx, underlying)
		return ferr
	})
	if err != nil {
		s.tracer.RecordMarketDataFetch(span, telemetry.MarketDataSummary{Duration: time.Since(start), Err: err})
		return nil, err
	}

	s.cache.SetOptionChain(ctx, chain)
	s.tracer.RecordMarketDataFetch(span, telemetry.MarketDataSummary{Items: len(chain.Contracts), Duration: time.Since(start)})
	return chain, nil
}

func (s *MarketDataService) execute(ctx context.Context, provider, operation string, fn func(context.Context) error) error {
	if s.recovery == nil {
		return fn(ctx)
	}
	return s.recovery.ExecuteWithRecovery(ctx, provider, operation, fn)
}

// Sources lists the configured history sources
func (s *MarketDataService) Sources() []string {
	names := make([]string, 0, len(s.historyProviders))
	for name := range s.historyProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package services

import (
	"context"
	"strings"

	"github.com/irfndi/market-gateway/internal/cache"
	"github.com/irfndi/market-gateway/internal/metrics"
	"github.com/irfndi/market-gateway/pkg/providers"
	"github.com/sirupsen/logrus"
)

// WatchlistName is the source name of the configured static list
const WatchlistName = "watchlist"

// trendingFetchSize is how many tickers are requested upstream and cached per source
const trendingFetchSize = 25

// Watchlist is a TrendingProvider over a fixed symbol list
type Watchlist []string

var _ providers.TrendingProvider = Watchlist(nil)

func (w Watchlist) Name() string { return WatchlistName }

func (w Watchlist) FetchTrending(_ context.Context, limit int) ([]string, error) {
	out := uniqueSymbols(w, nil)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TrendingTicker is one merged entry with the source that first listed it
type TrendingTicker struct {
	Symbol string `json:"symbol"`
	Source string `json:"source"`
}

// TrendingResult is the merged list plus the sources that could not be read
type TrendingResult struct {
	Tickers []TrendingTicker  `json:"tickers"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// Symbols returns the merged tickers in order
func (r *TrendingResult) Symbols() []string {
	out := make([]string, len(r.Tickers))
	for i, t := range r.Tickers {
		out[i] = t.Symbol
	}
	return out
}

// TrendingService merges trending lists from several sources
type TrendingService struct {
	sources   []providers.TrendingProvider
	cache     *cache.RedisMarketCache
	recovery  *ErrorRecoveryManager
	collector *metrics.Collector
	logger    logrus.FieldLogger
}

// NewTrendingService creates a trending service. Sources are merged in the given order.
func NewTrendingService(sources []providers.TrendingProvider, c *cache.RedisMarketCache, recovery *ErrorRecoveryManager, collector *metrics.Collector, logger logrus.FieldLogger) *TrendingService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TrendingService{
		sources:   sources,
		cache:     c,
		recovery:  recovery,
		collector: collector,
		logger:    logger.WithField("service", "trending"),
	}
}

// GetTrending merges every source's list, keeping the first occurrence of each symbol.
// A failing source is reported in Failed; the call only errors when every source fails.
func (s *TrendingService) GetTrending(ctx context.Context, limit int) (*TrendingResult, error) {
	result := &TrendingResult{Tickers: make([]TrendingTicker, 0)}
	seen := make(map[string]struct{})
	var lastErr error

	for _, source := range s.sources {
		symbols, err := s.fetch(ctx, source, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if result.Failed == nil {
				result.Failed = make(map[string]string)
			}
			result.Failed[source.Name()] = err.Error()
			lastErr = &UpstreamError{Provider: source.Name(), Err: err}
			s.logger.WithError(err).WithField("source", source.Name()).Warn("Trending source failed")
			continue
		}
		for _, symbol := range symbols {
			symbol = strings.ToUpper(strings.TrimSpace(symbol))
			if symbol == "" {
				continue
			}
			if _, dup := seen[symbol]; dup {
				continue
			}
			seen[symbol] = struct{}{}
			result.Tickers = append(result.Tickers, TrendingTicker{Symbol: symbol, Source: source.Name()})
		}
	}

	if len(result.Tickers) == 0 && lastErr != nil {
		return nil, lastErr
	}
	if limit > 0 && len(result.Tickers) > limit {
		result.Tickers = result.Tickers[:limit]
	}
	return result, nil
}

func (s *TrendingService) fetch(ctx context.Context, source providers.TrendingProvider, limit int) ([]string, error) {
	// static lists are not worth a round trip
	if _, static := source.(Watchlist); static {
		return source.FetchTrending(ctx, limit)
	}

	if cached, ok := s.cache.GetTrending(ctx, source.Name()); ok {
		s.collector.ObserveCache(cache.NamespaceTrending, true)
		if limit > 0 && len(cached) > limit {
			cached = cached[:limit]
		}
		return cached, nil
	}
	if s.cache != nil {
		s.collector.ObserveCache(cache.NamespaceTrending, false)
	}

	size := trendingFetchSize
	if limit > size {
		size = limit
	}
	var symbols []string
	fn := func(ctx context.Context) error {
		var err error
		symbols, err = source.FetchTrending(ctx, size)
		return err
	}
	var err error
	if s.recovery != nil {
		err = s.recovery.ExecuteWithRecovery(ctx, source.Name(), "trending", fn)
	} else {
		err = fn(ctx)
	}
	if err != nil {
		return nil, err
	}
	s.cache.SetTrending(ctx, source.Name(), symbols)
	if limit > 0 && len(symbols) > limit {
		symbols = symbols[:limit]
	}
	return symbols, nil
}

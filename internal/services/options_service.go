package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/irfndi/market-gateway/internal/metrics"
	"github.com/irfndi/market-gateway/internal/models"
	"github.com/irfndi/market-gateway/internal/options"
	"github.com/irfndi/market-gateway/internal/quant"
	"github.com/irfndi/market-gateway/internal/telemetry"
	"github.com/irfndi/market-gateway/internal/utils"
	"github.com/sirupsen/logrus"
)

// RecommendationRequest drives one option recommendation pass
type RecommendationRequest struct {
	Symbols        []string
	Filters        options.FilterCriteria
	Limit          int
	PerSymbolLimit int
	// UnderlyingTop keeps only the N best underlyings by composite score; 0 keeps all
	UnderlyingTop int
	// History is the price history used for the underlyings' metrics
	History MetricsRequest
	// RiskFreeRate feeds Black-Scholes
	RiskFreeRate float64
	Undervalued  *options.UndervaluedConfig
	Now          time.Time
}

// RecommendationResult is the ranked output plus every per-symbol failure
type RecommendationResult struct {
	Options     []options.ScoredOption   `json:"options"`
	Errors      []models.SymbolError     `json:"errors"`
	Dropped     map[models.ErrorKind]int `json:"dropped,omitempty"`
	Underlyings []string                 `json:"underlyings"`
	Count       int                      `json:"count"`
}

// OptionsService resolves underlyings and option chains, then ranks contracts
type OptionsService struct {
	data      MarketData
	optimizer *ResourceOptimizer
	collector *metrics.Collector
	tracer    *telemetry.BusinessTracer
	logger    logrus.FieldLogger
}

// NewOptionsService creates a new options service
func NewOptionsService(data MarketData, optimizer *ResourceOptimizer, collector *metrics.Collector, logger logrus.FieldLogger) *OptionsService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &OptionsService{
		data:      data,
		optimizer: optimizer,
		collector: collector,
		tracer:    telemetry.NewBusinessTracer(),
		logger:    logger.WithField("service", "options"),
	}
}

// Recommend ranks the option contracts of the requested underlyings
func (s *OptionsService) Recommend(ctx context.Context, req RecommendationRequest) (*RecommendationResult, error) {
	params := req.History.Params()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := req.History.Weights.Validate(); err != nil {
		return nil, err
	}
	if req.UnderlyingTop < 0 {
		return nil, models.InvalidConfigf("underlying_top must be non-negative, got %d", req.UnderlyingTop)
	}
	// reject bad filters before any upstream call
	check := options.RankRequest{
		Filters:        req.Filters,
		Limit:          req.Limit,
		PerSymbolLimit: req.PerSymbolLimit,
		RiskFreeRate:   req.RiskFreeRate,
		Undervalued:    req.Undervalued,
	}
	if err := check.Validate(); err != nil {
		return nil, err
	}

	symbols := uniqueSymbols(req.Symbols, func(sym string) string { return NormalizeSymbol(req.History.Source, sym) })
	if len(symbols) == 0 {
		return nil, utils.NewFieldError("symbols", "at least one symbol is required")
	}
	limit := s.optimizer.FanOutLimit(req.History.Concurrency)

	underlyings, err := s.resolveUnderlyings(ctx, symbols, req.History, params, limit)
	if err != nil {
		return nil, err
	}

	var symbolErrors []models.SymbolError
	scorable := make([]options.Underlying, 0, len(underlyings))
	for _, symbol := range symbols {
		u := underlyings[symbol]
		if !u.HasMetrics() {
			symbolErrors = append(symbolErrors, options.MissingMetricsError(symbol, u))
			continue
		}
		scorable = append(scorable, u)
	}
	selected := selectTopUnderlyings(scorable, req.UnderlyingTop)

	selectedSymbols := make([]string, len(selected))
	for i, u := range selected {
		selectedSymbols[i] = u.Symbol
	}
	contracts, chainErrors, err := s.collectContracts(ctx, selectedSymbols, limit)
	if err != nil {
		return nil, err
	}
	symbolErrors = append(symbolErrors, chainErrors...)

	ctx, span := s.tracer.TraceOptionsRanking(ctx, selectedSymbols, len(contracts))
	defer span.End()

	start := time.Now()
	ranked, err := options.Rank(options.RankRequest{
		Contracts:      contracts,
		Underlyings:    underlyings,
		Filters:        req.Filters,
		Limit:          req.Limit,
		PerSymbolLimit: req.PerSymbolLimit,
		Now:            req.Now,
		RiskFreeRate:   req.RiskFreeRate,
		Undervalued:    req.Undervalued,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	symbolErrors = append(symbolErrors, ranked.Errors...)
	sort.SliceStable(symbolErrors, func(i, j int) bool { return symbolErrors[i].Symbol < symbolErrors[j].Symbol })

	dropped := make(map[string]int, len(ranked.Dropped))
	for kind, n := range ranked.Dropped {
		dropped[string(kind)] = n
	}
	s.collector.ObserveEngineRun("rank_options", time.Since(start), dropped)
	s.collector.ObserveContractsReturned(len(ranked.Options))
	s.tracer.RecordRankingResult(span, telemetry.RankingSummary{
		Returned:     len(ranked.Options),
		SymbolErrors: len(symbolErrors),
		Dropped:      dropped,
		Duration:     time.Since(start),
	})

	if len(ranked.Dropped) == 0 {
		ranked.Dropped = nil
	}
	s.logger.WithFields(logrus.Fields{
		"underlyings": len(selectedSymbols),
		"contracts":   len(contracts),
		"returned":    len(ranked.Options),
		"errors":      len(symbolErrors),
	}).Info("Ranked option contracts")

	return &RecommendationResult{
		Options:     ranked.Options,
		Errors:      nonNilErrors(symbolErrors),
		Dropped:     ranked.Dropped,
		Underlyings: selectedSymbols,
		Count:       len(ranked.Options),
	}, nil
}

func (s *OptionsService) resolveUnderlyings(ctx context.Context, symbols []string, history MetricsRequest, params quant.Params, limit int) (map[string]options.Underlying, error) {
	var mu sync.Mutex
	underlyings := make(map[string]options.Underlying, len(symbols))

	err := fanOut(ctx, symbols, limit, func(ctx context.Context, symbol string) {
		u := options.Underlying{Symbol: symbol}
		h, err := s.data.GetPriceHistory(ctx, history.Source, symbol, history.Range, history.Interval)
		if err != nil {
			u.Err = err
		} else {
			u = options.UnderlyingFromPrices(symbol, models.Closes(h.Points), params, history.Weights)
		}
		mu.Lock()
		underlyings[symbol] = u
		mu.Unlock()
	})
	return underlyings, err
}

func (s *OptionsService) collectContracts(ctx context.Context, symbols []string, limit int) ([]models.OptionContract, []models.SymbolError, error) {
	var mu sync.Mutex
	chains := make(map[string][]models.OptionContract, len(symbols))
	var errs []models.SymbolError

	err := fanOut(ctx, symbols, limit, func(ctx context.Context, symbol string) {
		chain, err := s.data.GetOptionChain(ctx, symbol)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, models.NewSymbolError(symbol, err))
			return
		}
		contracts := make([]models.OptionContract, len(chain.Contracts))
		copy(contracts, chain.Contracts)
		// providers may spell the root differently (BRK.B vs BRKB)
		for i := range contracts {
			contracts[i].UnderlyingSymbol = symbol
		}
		chains[symbol] = contracts
	})
	if err != nil {
		return nil, nil, err
	}

	var all []models.OptionContract
	for _, symbol := range symbols {
		all = append(all, chains[symbol]...)
	}
	return all, errs, nil
}

// selectTopUnderlyings keeps the n highest composite scores, ties broken by symbol
func selectTopUnderlyings(us []options.Underlying, n int) []options.Underlying {
	if n <= 0 || n >= len(us) {
		return us
	}
	sorted := make([]options.Underlying, len(us))
	copy(sorted, us)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Metrics.CompositeScore, sorted[j].Metrics.CompositeScore
		if a != b {
			return a > b
		}
		return sorted[i].Symbol < sorted[j].Symbol
	})
	return sorted[:n]
}

func nonNilErrors(errs []models.SymbolError) []models.SymbolError {
	if errs == nil {
		return []models.SymbolError{}
	}
	return errs
}

// OpenInterestRequest asks for the open-interest leaders of each symbol
type OpenInterestRequest struct {
	Symbols     []string
	Side        options.Side
	Concurrency int
	Now         time.Time
}

// OpenInterestLeaders holds one symbol's most held near-term and LEAP contracts.
// A nil contract means the chain had nothing in that window.
type OpenInterestLeaders struct {
	Symbol    string                 `json:"symbol"`
	ShortTerm *models.OptionContract `json:"short_term"`
	Leap      *models.OptionContract `json:"leap"`
	Error     *models.SymbolError    `json:"error,omitempty"`
}

// OpenInterestResult lists the leaders in request order
type OpenInterestResult struct {
	Side            options.Side          `json:"side"`
	ShortTermWindow options.DTEWindow     `json:"short_term_window"`
	LeapWindow      options.DTEWindow     `json:"leap_window"`
	Results         []OpenInterestLeaders `json:"results"`
	Count           int                   `json:"count"`
}

// HighOpenInterest finds, per symbol, the contract with the largest open interest
// in the short-term and LEAP expiration windows. Chain failures stay per symbol.
func (s *OptionsService) HighOpenInterest(ctx context.Context, req OpenInterestRequest) (*OpenInterestResult, error) {
	side := req.Side
	if side == "" {
		side = options.SideCall
	}
	if _, err := options.ParseSide(string(side)); err != nil {
		return nil, err
	}
	symbols := uniqueSymbols(req.Symbols, nil)
	if len(symbols) == 0 {
		return nil, utils.NewFieldError("tickers", "at least one ticker is required")
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	start := time.Now()
	var mu sync.Mutex
	leaders := make(map[string]OpenInterestLeaders, len(symbols))
	err := fanOut(ctx, symbols, s.optimizer.FanOutLimit(req.Concurrency), func(ctx context.Context, symbol string) {
		entry := OpenInterestLeaders{Symbol: symbol}
		chain, err := s.data.GetOptionChain(ctx, symbol)
		if err != nil {
			se := models.NewSymbolError(symbol, err)
			entry.Error = &se
		} else {
			entry.ShortTerm = options.HighestOpenInterest(chain.Contracts, side, options.ShortTermWindow, now)
			entry.Leap = options.HighestOpenInterest(chain.Contracts, side, options.LeapWindow, now)
			for _, c := range []*models.OptionContract{entry.ShortTerm, entry.Leap} {
				if c != nil {
					c.UnderlyingSymbol = symbol
				}
			}
		}
		mu.Lock()
		leaders[symbol] = entry
		mu.Unlock()
	})
	if err != nil {
		return nil, err
	}

	result := &OpenInterestResult{
		Side:            side,
		ShortTermWindow: options.ShortTermWindow,
		LeapWindow:      options.LeapWindow,
		Results:         make([]OpenInterestLeaders, 0, len(symbols)),
	}
	failed := 0
	for _, symbol := range symbols {
		entry := leaders[symbol]
		if entry.Error != nil {
			failed++
		}
		result.Results = append(result.Results, entry)
	}
	result.Count = len(result.Results)
	s.collector.ObserveEngineRun("open_interest", time.Since(start), nil)

	s.logger.WithFields(logrus.Fields{
		"symbols": len(symbols),
		"side":    side,
		"failed":  failed,
	}).Info("Selected open interest leaders")
	return result, nil
}

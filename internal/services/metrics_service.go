package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/irfndi/market-gateway/internal/metrics"
	"github.com/irfndi/market-gateway/internal/models"
	"github.com/irfndi/market-gateway/internal/quant"
	"github.com/irfndi/market-gateway/internal/telemetry"
	"github.com/irfndi/market-gateway/internal/utils"
	"github.com/sirupsen/logrus"
)

// MetricsRequest carries the per-call parameters of a metrics computation
type MetricsRequest struct {
	Source         string
	Range          string
	Interval       string
	RiskFreeRate   float64
	TargetReturn   *float64
	PeriodsPerYear *int // nil infers from Interval
	Weights        quant.CompositeWeights
	Concurrency    int
}

// Params resolves the annualization factor and returns the engine parameters
func (r MetricsRequest) Params() quant.Params {
	return quant.Params{
		RiskFreeRate:   r.RiskFreeRate,
		TargetReturn:   r.TargetReturn,
		PeriodsPerYear: quant.PeriodsPerYear(r.Interval, r.PeriodsPerYear),
	}
}

// SymbolMetrics is one symbol's entry in a metrics response
type SymbolMetrics struct {
	Symbol         string                   `json:"symbol"`
	Source         string                   `json:"source"`
	Range          string                   `json:"range"`
	Interval       string                   `json:"interval"`
	PeriodsPerYear int                      `json:"periods_per_year"`
	LastPrice      float64                  `json:"last_price"`
	AsOf           *time.Time               `json:"as_of,omitempty"`
	Metrics        *quant.RiskMetrics       `json:"metrics,omitempty"`
	Technical      *quant.TechnicalSnapshot `json:"technical,omitempty"`
}

// RankedMetrics is a multi-symbol response ordered by composite score
type RankedMetrics struct {
	Results []SymbolMetrics      `json:"results"`
	Errors  []models.SymbolError `json:"errors"`
}

// MetricsService computes risk metrics over provider price histories
type MetricsService struct {
	data      MarketData
	optimizer *ResourceOptimizer
	collector *metrics.Collector
	tracer    *telemetry.BusinessTracer
	logger    logrus.FieldLogger
}

// NewMetricsService creates a new metrics service
func NewMetricsService(data MarketData, optimizer *ResourceOptimizer, collector *metrics.Collector, logger logrus.FieldLogger) *MetricsService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MetricsService{
		data:      data,
		optimizer: optimizer,
		collector: collector,
		tracer:    telemetry.NewBusinessTracer(),
		logger:    logger.WithField("service", "metrics"),
	}
}

func (s *MetricsService) validate(req MetricsRequest) (quant.Params, error) {
	params := req.Params()
	if err := params.Validate(); err != nil {
		return params, err
	}
	if err := req.Weights.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

// GetMetrics computes the metrics and technical snapshot of one symbol
func (s *MetricsService) GetMetrics(ctx context.Context, symbol string, req MetricsRequest) (*SymbolMetrics, error) {
	params, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	history, err := s.data.GetPriceHistory(ctx, req.Source, symbol, req.Range, req.Interval)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	closes := models.Closes(history.Points)
	m, err := quant.ComputeRiskMetrics(closes, params, req.Weights)
	s.observe("metrics", start, err)
	if err != nil {
		return nil, models.WithSymbol(err, history.Symbol)
	}

	entry := newSymbolMetrics(history, params.PeriodsPerYear)
	entry.Metrics = &m
	technical := quant.ComputeTechnicalSnapshot(closes)
	entry.Technical = &technical
	return entry, nil
}

// RankSymbols computes metrics for many symbols and orders them by composite score,
// best first. Symbols that fail are reported in Errors, sorted by symbol.
func (s *MetricsService) RankSymbols(ctx context.Context, symbols []string, req MetricsRequest) (*RankedMetrics, error) {
	params, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	symbols = uniqueSymbols(symbols, func(sym string) string { return NormalizeSymbol(req.Source, sym) })
	if len(symbols) == 0 {
		return nil, utils.NewFieldError("symbols", "at least one symbol is required")
	}

	ctx, span := s.tracer.TraceMetricsComputation(ctx, symbols)
	defer span.End()

	var mu sync.Mutex
	histories := make(map[string]*models.PriceHistory, len(symbols))
	errs := make(map[string]error)

	limit := s.optimizer.FanOutLimit(req.Concurrency)
	err = fanOut(ctx, symbols, limit, func(ctx context.Context, symbol string) {
		h, ferr := s.data.GetPriceHistory(ctx, req.Source, symbol, req.Range, req.Interval)
		mu.Lock()
		defer mu.Unlock()
		if ferr != nil {
			errs[symbol] = ferr
			return
		}
		histories[symbol] = h
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	closes := make(map[string][]float64, len(histories))
	for symbol, h := range histories {
		closes[symbol] = models.Closes(h.Points)
	}

	start := time.Now()
	batch, err := quant.ComputeAll(ctx, closes, params, req.Weights, limit)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	for symbol, cerr := range batch.Errors {
		errs[symbol] = cerr
	}
	s.observeBatch(start, batch.Errors)

	result := &RankedMetrics{
		Results: make([]SymbolMetrics, 0, len(batch.Metrics)),
		Errors:  make([]models.SymbolError, 0, len(errs)),
	}
	for symbol, m := range batch.Metrics {
		entry := newSymbolMetrics(histories[symbol], params.PeriodsPerYear)
		metricsCopy := m
		entry.Metrics = &metricsCopy
		result.Results = append(result.Results, *entry)
	}
	sort.SliceStable(result.Results, func(i, j int) bool {
		a, b := result.Results[i].Metrics.CompositeScore, result.Results[j].Metrics.CompositeScore
		if a != b {
			return a > b
		}
		return result.Results[i].Symbol < result.Results[j].Symbol
	})
	for _, symbol := range sortedKeys(errs) {
		result.Errors = append(result.Errors, models.NewSymbolError(symbol, errs[symbol]))
	}

	s.tracer.RecordMetricsResult(span, telemetry.MetricsSummary{
		Computed: len(result.Results),
		Failed:   len(result.Errors),
		Duration: time.Since(start),
	})
	s.logger.WithFields(logrus.Fields{
		"symbols":  len(symbols),
		"computed": len(result.Results),
		"failed":   len(result.Errors),
	}).Debug("Ranked symbols by composite score")
	return result, nil
}

func newSymbolMetrics(h *models.PriceHistory, periodsPerYear int) *SymbolMetrics {
	entry := &SymbolMetrics{
		Symbol:         h.Symbol,
		Source:         h.Source,
		Range:          h.Range,
		Interval:       h.Interval,
		PeriodsPerYear: periodsPerYear,
	}
	if last, ok := h.LastClose(); ok {
		entry.LastPrice = last
		asOf := h.Points[len(h.Points)-1].Time
		entry.AsOf = &asOf
	}
	return entry
}

func (s *MetricsService) observe(operation string, start time.Time, err error) {
	var kinds map[string]int
	if err != nil {
		kinds = map[string]int{string(models.KindOf(err)): 1}
	}
	s.collector.ObserveEngineRun(operation, time.Since(start), kinds)
}

func (s *MetricsService) observeBatch(start time.Time, errs map[string]error) {
	kinds := make(map[string]int)
	for _, err := range errs {
		kinds[string(models.KindOf(err))]++
	}
	s.collector.ObserveEngineRun("rank_metrics", time.Since(start), kinds)
}

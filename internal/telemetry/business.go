package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BusinessTracer provides spans for the gateway's domain operations:
// upstream fetches, metric computation and option ranking.
type BusinessTracer struct {
	tracer trace.Tracer
}

// NewBusinessTracer creates a BusinessTracer backed by the engine tracer.
func NewBusinessTracer() *BusinessTracer {
	return &BusinessTracer{tracer: GetEngineTracer()}
}

// TraceMarketDataFetch starts a client span around one upstream provider call.
//
// Parameters:
//   - ctx: The parent context.
//   - provider: The provider name (yahoo, alpaca, kraken).
//   - operation: What is being fetched (history, option_chain, trending).
//   - symbol: The requested symbol, empty for symbol-less calls.
//
// Returns:
//   - A context carrying the new span.
//   - The span, to be ended by the caller.
func (bt *BusinessTracer) TraceMarketDataFetch(ctx context.Context, provider, operation, symbol string) (context.Context, trace.Span) {
	ctx, span := GetExternalTracer().Start(ctx, "market_data."+operation, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("provider", provider),
		attribute.String("operation", operation),
	)
	if symbol != "" {
		span.SetAttributes(attribute.String("symbol", symbol))
	}
	return ctx, span
}

// RecordMarketDataFetch records the outcome of a fetch on its span.
func (bt *BusinessTracer) RecordMarketDataFetch(span trace.Span, summary MarketDataSummary) {
	span.SetAttributes(
		attribute.Bool("cache_hit", summary.CacheHit),
		attribute.Int("items", summary.Items),
		attribute.Int64("duration_ms", summary.Duration.Milliseconds()),
	)
	if summary.Err != nil {
		RecordError(span, summary.Err)
		return
	}
	span.SetStatus(codes.Ok, "")
}

// TraceMetricsComputation starts a span around a batch of risk metric computations.
func (bt *BusinessTracer) TraceMetricsComputation(ctx context.Context, symbols []string) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "engine.compute_metrics",
		trace.WithAttributes(
			attribute.StringSlice("symbols", symbols),
			attribute.Int("symbol_count", len(symbols)),
		))
}

// RecordMetricsResult adds the batch outcome to the span.
func (bt *BusinessTracer) RecordMetricsResult(span trace.Span, summary MetricsSummary) {
	span.SetAttributes(
		attribute.Int("computed_count", summary.Computed),
		attribute.Int("failed_count", summary.Failed),
		attribute.Int64("computation_time_ms", summary.Duration.Milliseconds()),
	)
}

// TraceOptionsRanking starts a span around one filter-and-rank pass.
//
// Parameters:
//   - ctx: The parent context.
//   - underlyings: The underlying symbols whose chains are ranked.
//   - contracts: The number of raw contracts entering the filters.
func (bt *BusinessTracer) TraceOptionsRanking(ctx context.Context, underlyings []string, contracts int) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "engine.rank_options",
		trace.WithAttributes(
			attribute.StringSlice("underlyings", underlyings),
			attribute.Int("contracts_in", contracts),
		))
}

// RecordRankingResult adds the ranking outcome to the span.
func (bt *BusinessTracer) RecordRankingResult(span trace.Span, summary RankingSummary) {
	span.SetAttributes(
		attribute.Int("contracts_returned", summary.Returned),
		attribute.Int("symbol_errors", summary.SymbolErrors),
		attribute.Int64("ranking_time_ms", summary.Duration.Milliseconds()),
	)
	for kind, n := range summary.Dropped {
		span.SetAttributes(attribute.Int("dropped."+kind, n))
	}
}

// MarketDataSummary describes one upstream fetch.
type MarketDataSummary struct {
	CacheHit bool
	Items    int
	Duration time.Duration
	Err      error
}

// MetricsSummary describes a batch of metric computations.
type MetricsSummary struct {
	Computed int
	Failed   int
	Duration time.Duration
}

// RankingSummary describes a filter-and-rank pass. Dropped is keyed by error kind.
type RankingSummary struct {
	Returned     int
	SymbolErrors int
	Dropped      map[string]int
	Duration     time.Duration
}

package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func TestBusinessTracer_MarketDataFetch(t *testing.T) {
	recorder := withRecorder(t)
	bt := NewBusinessTracer()

	_, span := bt.TraceMarketDataFetch(context.Background(), "yahoo", "history", "AAPL")
	bt.RecordMarketDataFetch(span, MarketDataSummary{CacheHit: true, Items: 252, Duration: 3 * time.Millisecond})
	span.End()

	_, failed := bt.TraceMarketDataFetch(context.Background(), "yahoo", "trending", "")
	bt.RecordMarketDataFetch(failed, MarketDataSummary{Err: errors.New("upstream down")})
	failed.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "market_data.history", spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	assert.Contains(t, spans[0].Attributes(), attribute.String("symbol", "AAPL"))
	assert.Contains(t, spans[0].Attributes(), attribute.Bool("cache_hit", true))
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	assert.NotContains(t, spans[1].Attributes(), attribute.String("symbol", ""))
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestBusinessTracer_EngineSpans(t *testing.T) {
	recorder := withRecorder(t)
	bt := NewBusinessTracer()

	_, span := bt.TraceMetricsComputation(context.Background(), []string{"AAPL", "MSFT"})
	bt.RecordMetricsResult(span, MetricsSummary{Computed: 1, Failed: 1, Duration: time.Millisecond})
	span.End()

	_, rank := bt.TraceOptionsRanking(context.Background(), []string{"AAPL"}, 40)
	bt.RecordRankingResult(rank, RankingSummary{Returned: 10, Dropped: map[string]int{"ExpiredContract": 2}})
	rank.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "engine.compute_metrics", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int("symbol_count", 2))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("failed_count", 1))

	assert.Equal(t, "engine.rank_options", spans[1].Name())
	assert.Contains(t, spans[1].Attributes(), attribute.Int("contracts_in", 40))
	assert.Contains(t, spans[1].Attributes(), attribute.Int("dropped.ExpiredContract", 2))
}

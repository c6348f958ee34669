package quant

import (
	"context"
	"sync"

	"github.com/irfndi/market-gateway/internal/models"
	"golang.org/x/sync/errgroup"
)

// BatchResult holds per-symbol metrics and per-symbol failures of a fan-out computation
type BatchResult struct {
	Metrics map[string]RiskMetrics
	Errors  map[string]error
}

// ComputeAll computes metrics for every symbol concurrently, running at most
// concurrency computations at once (unbounded when concurrency <= 0).
// A failing symbol never aborts the others.
func ComputeAll(ctx context.Context, closes map[string][]float64, p Params, w CompositeWeights, concurrency int) (*BatchResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	result := &BatchResult{
		Metrics: make(map[string]RiskMetrics, len(closes)),
		Errors:  make(map[string]error),
	}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for symbol, prices := range closes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := ComputeRiskMetrics(prices, p, w)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[symbol] = models.WithSymbol(err, symbol)
				return nil
			}
			result.Metrics[symbol] = m
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

package services

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// fanOut runs fn once per symbol with at most limit calls in flight.
// fn records its own per-symbol failures; only context cancellation aborts the batch.
func fanOut(ctx context.Context, symbols []string, limit int, fn func(ctx context.Context, symbol string)) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, symbol := range symbols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(gctx, symbol)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// uniqueSymbols upper-cases, trims and de-duplicates symbols, keeping first-seen order
func uniqueSymbols(symbols []string, normalize func(string) string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if normalize != nil {
			s = normalize(s)
		} else {
			s = strings.ToUpper(strings.TrimSpace(s))
		}
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/irfndi/market-gateway/internal/models"
)

// HistoryProvider supplies ordered closing prices for a symbol
type HistoryProvider interface {
	Name() string
	FetchHistory(ctx context.Context, symbol, rangeLabel, interval string) (*models.PriceHistory, error)
}

// ChainProvider supplies option chains for an underlying
type ChainProvider interface {
	Name() string
	FetchOptionChain(ctx context.Context, underlying string) (*models.OptionChain, error)
}

// TrendingProvider supplies a list of currently popular tickers
type TrendingProvider interface {
	Name() string
	FetchTrending(ctx context.Context, limit int) ([]string, error)
}

// Ensure our implementations satisfy the interfaces
var (
	_ HistoryProvider  = (*Yahoo)(nil)
	_ ChainProvider    = (*Yahoo)(nil)
	_ TrendingProvider = (*Yahoo)(nil)
	_ ChainProvider    = (*Alpaca)(nil)
	_ HistoryProvider  = (*Kraken)(nil)
)

// Supported range labels
var rangeDurations = map[string]time.Duration{
	"1mo": 30 * 24 * time.Hour,
	"3mo": 91 * 24 * time.Hour,
	"6mo": 182 * 24 * time.Hour,
	"1y":  365 * 24 * time.Hour,
	"2y":  730 * 24 * time.Hour,
	"5y":  1826 * 24 * time.Hour,
}

// ValidateRange checks a history range label
func ValidateRange(rangeLabel string) error {
	if _, ok := rangeDurations[strings.ToLower(rangeLabel)]; !ok {
		return fmt.Errorf("unsupported range %q (want 1mo, 3mo, 6mo, 1y, 2y or 5y)", rangeLabel)
	}
	return nil
}

// ValidateInterval checks a history bar interval
func ValidateInterval(interval string) error {
	switch strings.ToLower(interval) {
	case "1d", "1wk", "1mo":
		return nil
	default:
		return fmt.Errorf("unsupported interval %q (want 1d, 1wk or 1mo)", interval)
	}
}

// RangeDuration converts a range label into a lookback duration
func RangeDuration(rangeLabel string) (time.Duration, error) {
	d, ok := rangeDurations[strings.ToLower(rangeLabel)]
	if !ok {
		return 0, ValidateRange(rangeLabel)
	}
	return d, nil
}

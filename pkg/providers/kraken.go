package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/irfndi/market-gateway/internal/models"
	"github.com/shopspring/decimal"
)

// KrakenName identifies the Kraken public REST API
const KrakenName = "kraken"

var krakenIntervals = map[string]int{
	"1d":  1440,
	"1wk": 10080,
}

// Kraken reads crypto OHLC history from Kraken's public API
type Kraken struct {
	client *Client
	now    func() time.Time
}

func NewKraken(client *Client) *Kraken {
	return &Kraken{client: client, now: time.Now}
}

func (k *Kraken) Name() string {
	return KrakenName
}

type krakenOHLCResponse struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

// FetchHistory returns closes for a pair such as XBTUSD. Rows are
// [time, open, high, low, close, vwap, volume, count] with prices as strings.
func (k *Kraken) FetchHistory(ctx context.Context, symbol, rangeLabel, interval string) (*models.PriceHistory, error) {
	lookback, err := RangeDuration(rangeLabel)
	if err != nil {
		return nil, err
	}
	minutes, ok := krakenIntervals[strings.ToLower(interval)]
	if !ok {
		return nil, fmt.Errorf("unsupported kraken interval %q (want 1d or 1wk)", interval)
	}

	pair := strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
	query := url.Values{}
	query.Set("pair", pair)
	query.Set("interval", strconv.Itoa(minutes))
	query.Set("since", strconv.FormatInt(k.now().Add(-lookback).Unix(), 10))

	var resp krakenOHLCResponse
	if err := k.client.getJSON(ctx, "ohlc", "/0/public/OHLC", query, &resp); err != nil {
		return nil, err
	}
	if len(resp.Error) > 0 {
		return nil, fmt.Errorf("kraken ohlc %s: %s: %w", pair, strings.Join(resp.Error, "; "), ErrNoData)
	}

	history := &models.PriceHistory{
		Symbol:   pair,
		Source:   KrakenName,
		Range:    rangeLabel,
		Interval: interval,
	}
	for key, raw := range resp.Result {
		if key == "last" {
			continue
		}
		var rows [][]interface{}
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("kraken ohlc %s: failed to decode rows: %w", pair, err)
		}
		for _, row := range rows {
			point, err := krakenPoint(row)
			if err != nil {
				return nil, fmt.Errorf("kraken ohlc %s: %w", pair, err)
			}
			history.Points = append(history.Points, point)
		}
		// one pair per request
		break
	}

	if len(history.Points) == 0 {
		return nil, fmt.Errorf("kraken ohlc %s: %w", pair, ErrNoData)
	}
	return history, nil
}

func krakenPoint(row []interface{}) (models.PricePoint, error) {
	if len(row) < 5 {
		return models.PricePoint{}, fmt.Errorf("short OHLC row of %d fields", len(row))
	}
	ts, ok := row[0].(float64)
	if !ok {
		return models.PricePoint{}, fmt.Errorf("unexpected OHLC timestamp %v", row[0])
	}
	closeStr, ok := row[4].(string)
	if !ok {
		return models.PricePoint{}, fmt.Errorf("unexpected OHLC close %v", row[4])
	}
	closePrice, err := decimal.NewFromString(closeStr)
	if err != nil {
		return models.PricePoint{}, fmt.Errorf("invalid OHLC close %q: %w", closeStr, err)
	}
	return models.PricePoint{Time: time.Unix(int64(ts), 0).UTC(), Close: closePrice}, nil
}

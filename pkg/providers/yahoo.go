package providers

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/irfndi/market-gateway/internal/models"
	"github.com/shopspring/decimal"
)

// YahooName identifies Yahoo Finance
const YahooName = "yahoo"

// Yahoo reads history, option chains and trending tickers from Yahoo Finance's public JSON API
type Yahoo struct {
	client         *Client
	region         string
	maxExpirations int
}

// NewYahoo creates a Yahoo adapter. maxExpirations bounds how many expiration dates
// are fetched per option chain.
func NewYahoo(client *Client, region string, maxExpirations int) *Yahoo {
	if region == "" {
		region = "US"
	}
	if maxExpirations <= 0 {
		maxExpirations = 4
	}
	return &Yahoo{client: client, region: region, maxExpirations: maxExpirations}
}

func (y *Yahoo) Name() string {
	return YahooName
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// FetchHistory returns daily, weekly or monthly closes. Bars without a close are skipped.
func (y *Yahoo) FetchHistory(ctx context.Context, symbol, rangeLabel, interval string) (*models.PriceHistory, error) {
	if err := ValidateRange(rangeLabel); err != nil {
		return nil, err
	}
	if err := ValidateInterval(interval); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("range", rangeLabel)
	query.Set("interval", interval)
	query.Set("includePrePost", "false")

	var resp yahooChartResponse
	path := "/v8/finance/chart/" + url.PathEscape(symbol)
	if err := y.client.getJSON(ctx, "chart", path, query, &resp); err != nil {
		return nil, err
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart %s: %s: %w", symbol, resp.Chart.Error.Description, ErrNoData)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, ErrNoData)
	}

	result := resp.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	history := &models.PriceHistory{
		Symbol:   strings.ToUpper(symbol),
		Source:   YahooName,
		Range:    rangeLabel,
		Interval: interval,
		Points:   make([]models.PricePoint, 0, len(result.Timestamp)),
	}
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil || math.IsNaN(*closes[i]) {
			continue
		}
		history.Points = append(history.Points, models.PricePoint{
			Time:  time.Unix(ts, 0).UTC(),
			Close: decimal.NewFromFloat(*closes[i]),
		})
	}
	if len(history.Points) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, ErrNoData)
	}
	return history, nil
}

type yahooOptionQuote struct {
	ContractSymbol    string   `json:"contractSymbol"`
	Strike            float64  `json:"strike"`
	LastPrice         float64  `json:"lastPrice"`
	Bid               float64  `json:"bid"`
	Ask               float64  `json:"ask"`
	Volume            *int64   `json:"volume"`
	OpenInterest      *int64   `json:"openInterest"`
	ImpliedVolatility float64  `json:"impliedVolatility"`
	Expiration        int64    `json:"expiration"`
	Delta             *float64 `json:"delta"`
}

type yahooOptionsResponse struct {
	OptionChain struct {
		Result []struct {
			UnderlyingSymbol string  `json:"underlyingSymbol"`
			ExpirationDates  []int64 `json:"expirationDates"`
			Options          []struct {
				ExpirationDate int64              `json:"expirationDate"`
				Calls          []yahooOptionQuote `json:"calls"`
				Puts           []yahooOptionQuote `json:"puts"`
			} `json:"options"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"optionChain"`
}

// FetchOptionChain returns calls and puts for the nearest expirations
func (y *Yahoo) FetchOptionChain(ctx context.Context, underlying string) (*models.OptionChain, error) {
	underlying = strings.ToUpper(underlying)
	chain := &models.OptionChain{UnderlyingSymbol: underlying, Source: YahooName}

	first, err := y.fetchOptions(ctx, underlying, 0)
	if err != nil {
		return nil, err
	}
	dates := first.dates
	chain.Contracts = append(chain.Contracts, first.contracts...)

	seen := map[int64]bool{}
	for _, d := range first.fetched {
		seen[d] = true
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
	fetched := len(first.fetched)
	for _, d := range dates {
		if fetched >= y.maxExpirations {
			break
		}
		if seen[d] {
			continue
		}
		page, err := y.fetchOptions(ctx, underlying, d)
		if err != nil {
			// a partial chain is still useful
			y.client.logger.WithError(err).WithField("symbol", underlying).Warn("Failed to fetch option expiration")
			break
		}
		chain.Contracts = append(chain.Contracts, page.contracts...)
		seen[d] = true
		fetched++
	}

	if len(chain.Contracts) == 0 {
		return nil, fmt.Errorf("yahoo options %s: %w", underlying, ErrNoData)
	}
	return chain, nil
}

type yahooOptionsPage struct {
	dates     []int64
	fetched   []int64
	contracts []models.OptionContract
}

func (y *Yahoo) fetchOptions(ctx context.Context, underlying string, date int64) (*yahooOptionsPage, error) {
	query := url.Values{}
	if date > 0 {
		query.Set("date", strconv.FormatInt(date, 10))
	}

	var resp yahooOptionsResponse
	path := "/v7/finance/options/" + url.PathEscape(underlying)
	if err := y.client.getJSON(ctx, "options", path, query, &resp); err != nil {
		return nil, err
	}
	if resp.OptionChain.Error != nil {
		return nil, fmt.Errorf("yahoo options %s: %s: %w", underlying, resp.OptionChain.Error.Description, ErrNoData)
	}
	if len(resp.OptionChain.Result) == 0 {
		return nil, fmt.Errorf("yahoo options %s: %w", underlying, ErrNoData)
	}

	result := resp.OptionChain.Result[0]
	page := &yahooOptionsPage{dates: result.ExpirationDates}
	for _, group := range result.Options {
		page.fetched = append(page.fetched, group.ExpirationDate)
		for _, q := range group.Calls {
			page.contracts = append(page.contracts, q.toContract(underlying, models.OptionTypeCall))
		}
		for _, q := range group.Puts {
			page.contracts = append(page.contracts, q.toContract(underlying, models.OptionTypePut))
		}
	}
	return page, nil
}

func (q yahooOptionQuote) toContract(underlying string, t models.OptionType) models.OptionContract {
	c := models.OptionContract{
		Symbol:            q.ContractSymbol,
		UnderlyingSymbol:  underlying,
		StrikePrice:       q.Strike,
		ExpirationDate:    time.Unix(q.Expiration, 0).UTC(),
		Type:              t,
		BidPrice:          q.Bid,
		AskPrice:          q.Ask,
		LastPrice:         q.LastPrice,
		ImpliedVolatility: q.ImpliedVolatility,
		Delta:             q.Delta,
	}
	if q.Volume != nil {
		c.Volume = *q.Volume
	}
	if q.OpenInterest != nil {
		c.OpenInterest = *q.OpenInterest
	}
	return c
}

type yahooTrendingResponse struct {
	Finance struct {
		Result []struct {
			Quotes []struct {
				Symbol string `json:"symbol"`
			} `json:"quotes"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"finance"`
}

// FetchTrending returns the region's trending tickers, most popular first
func (y *Yahoo) FetchTrending(ctx context.Context, limit int) ([]string, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("count", strconv.Itoa(limit))
	}

	var resp yahooTrendingResponse
	if err := y.client.getJSON(ctx, "trending", "/v1/finance/trending/"+url.PathEscape(y.region), query, &resp); err != nil {
		return nil, err
	}
	if resp.Finance.Error != nil {
		return nil, fmt.Errorf("yahoo trending: %s: %w", resp.Finance.Error.Description, ErrNoData)
	}

	var symbols []string
	for _, r := range resp.Finance.Result {
		for _, q := range r.Quotes {
			if q.Symbol == "" {
				continue
			}
			symbols = append(symbols, strings.ToUpper(q.Symbol))
			if limit > 0 && len(symbols) >= limit {
				return symbols, nil
			}
		}
	}
	return symbols, nil
}

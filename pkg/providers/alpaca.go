package providers

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/irfndi/market-gateway/internal/models"
)

// AlpacaName identifies the Alpaca market data API
const AlpacaName = "alpaca"

const (
	alpacaPageLimit = 1000
	alpacaMaxPages  = 10
)

// Alpaca reads option chain snapshots from the Alpaca market data API.
// Snapshots carry quotes, trades and greeks but no open interest.
type Alpaca struct {
	client *Client
	feed   string
}

// NewAlpaca creates an Alpaca adapter. The client must carry the API key headers,
// see AlpacaHeaders.
func NewAlpaca(client *Client, feed string) *Alpaca {
	if feed == "" {
		feed = "indicative"
	}
	return &Alpaca{client: client, feed: feed}
}

// AlpacaHeaders returns the authentication headers for the market data API
func AlpacaHeaders(keyID, secret string) map[string]string {
	return map[string]string{
		"APCA-API-KEY-ID":     keyID,
		"APCA-API-SECRET-KEY": secret,
	}
}

func (a *Alpaca) Name() string {
	return AlpacaName
}

type alpacaSnapshot struct {
	LatestQuote *struct {
		BidPrice float64 `json:"bp"`
		AskPrice float64 `json:"ap"`
	} `json:"latestQuote"`
	LatestTrade *struct {
		Price float64 `json:"p"`
		Size  int64   `json:"s"`
	} `json:"latestTrade"`
	DailyBar *struct {
		Volume int64 `json:"v"`
	} `json:"dailyBar"`
	Greeks *struct {
		Delta float64 `json:"delta"`
	} `json:"greeks"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
}

type alpacaSnapshotsResponse struct {
	Snapshots     map[string]alpacaSnapshot `json:"snapshots"`
	NextPageToken *string                   `json:"next_page_token"`
}

// FetchOptionChain pages through all option snapshots of the underlying
func (a *Alpaca) FetchOptionChain(ctx context.Context, underlying string) (*models.OptionChain, error) {
	underlying = strings.ToUpper(underlying)
	chain := &models.OptionChain{UnderlyingSymbol: underlying, Source: AlpacaName}

	pageToken := ""
	for page := 0; page < alpacaMaxPages; page++ {
		query := url.Values{}
		query.Set("feed", a.feed)
		query.Set("limit", strconv.Itoa(alpacaPageLimit))
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}

		var resp alpacaSnapshotsResponse
		path := "/v1beta1/options/snapshots/" + url.PathEscape(underlying)
		if err := a.client.getJSON(ctx, "option_snapshots", path, query, &resp); err != nil {
			return nil, err
		}

		// map iteration order is random; keep chains stable
		symbols := make([]string, 0, len(resp.Snapshots))
		for sym := range resp.Snapshots {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)

		for _, sym := range symbols {
			contract, err := a.toContract(sym, resp.Snapshots[sym])
			if err != nil {
				a.client.logger.WithError(err).WithField("contract", sym).Debug("Skipping unparseable option symbol")
				continue
			}
			chain.Contracts = append(chain.Contracts, contract)
		}

		if resp.NextPageToken == nil || *resp.NextPageToken == "" {
			break
		}
		pageToken = *resp.NextPageToken
	}

	if len(chain.Contracts) == 0 {
		return nil, fmt.Errorf("alpaca options %s: %w", underlying, ErrNoData)
	}
	return chain, nil
}

func (a *Alpaca) toContract(symbol string, snap alpacaSnapshot) (models.OptionContract, error) {
	occ, err := ParseOCCSymbol(symbol)
	if err != nil {
		return models.OptionContract{}, err
	}
	c := models.OptionContract{
		Symbol:            symbol,
		UnderlyingSymbol:  occ.Root,
		StrikePrice:       occ.Strike,
		ExpirationDate:    occ.Expiration,
		Type:              occ.Type,
		ImpliedVolatility: snap.ImpliedVolatility,
	}
	if snap.LatestQuote != nil {
		c.BidPrice = snap.LatestQuote.BidPrice
		c.AskPrice = snap.LatestQuote.AskPrice
	}
	if snap.LatestTrade != nil {
		c.LastPrice = snap.LatestTrade.Price
	}
	if snap.DailyBar != nil {
		c.Volume = snap.DailyBar.Volume
	}
	if snap.Greeks != nil {
		delta := snap.Greeks.Delta
		c.Delta = &delta
	}
	return c, nil
}

// OCCSymbol is a decoded OCC option symbol such as AAPL250117C00150000
type OCCSymbol struct {
	Root       string
	Expiration time.Time
	Type       models.OptionType
	Strike     float64
}

// ParseOCCSymbol decodes root, YYMMDD expiration, C/P and the strike in thousandths
func ParseOCCSymbol(symbol string) (OCCSymbol, error) {
	s := strings.ToUpper(strings.ReplaceAll(symbol, " ", ""))
	// 6 date digits + right + 8 strike digits
	if len(s) < 16 {
		return OCCSymbol{}, fmt.Errorf("invalid OCC symbol %q: too short", symbol)
	}
	tail := s[len(s)-15:]
	root := s[:len(s)-15]

	exp, err := time.Parse("060102", tail[:6])
	if err != nil {
		return OCCSymbol{}, fmt.Errorf("invalid OCC symbol %q: bad expiration: %w", symbol, err)
	}
	optionType, err := models.ParseOptionType(tail[6:7])
	if err != nil {
		return OCCSymbol{}, fmt.Errorf("invalid OCC symbol %q: %w", symbol, err)
	}
	thousandths, err := strconv.ParseInt(tail[7:], 10, 64)
	if err != nil {
		return OCCSymbol{}, fmt.Errorf("invalid OCC symbol %q: bad strike: %w", symbol, err)
	}

	return OCCSymbol{
		Root:       root,
		Expiration: exp.UTC(),
		Type:       optionType,
		Strike:     float64(thousandths) / 1000,
	}, nil
}

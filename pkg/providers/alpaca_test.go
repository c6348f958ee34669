package providers_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/irfndi/market-gateway/internal/models"
	"github.com/irfndi/market-gateway/pkg/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOCCSymbol(t *testing.T) {
	tests := []struct {
		name     string
		symbol   string
		expected providers.OCCSymbol
		wantErr  bool
	}{
		{
			name:   "call",
			symbol: "AAPL250117C00150000",
			expected: providers.OCCSymbol{Root: "AAPL", Expiration: time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC),
				Type: models.OptionTypeCall, Strike: 150},
		},
		{
			name:   "fractional put",
			symbol: "SPY250321P00512500",
			expected: providers.OCCSymbol{Root: "SPY", Expiration: time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC),
				Type: models.OptionTypePut, Strike: 512.5},
		},
		{
			name:   "padded root",
			symbol: "F     250117C00012000",
			expected: providers.OCCSymbol{Root: "F", Expiration: time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC),
				Type: models.OptionTypeCall, Strike: 12},
		},
		{name: "too short", symbol: "C00150000", wantErr: true},
		{name: "bad right", symbol: "AAPL250117X00150000", wantErr: true},
		{name: "bad date", symbol: "AAPL251317C00150000", wantErr: true},
		{name: "bad strike", symbol: "AAPL250117C0015000A", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := providers.ParseOCCSymbol(tt.symbol)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestAlpaca_FetchOptionChain(t *testing.T) {
	page1 := `{"snapshots":{
"AAPL250117P00100000":{"latestQuote":{"bp":1.0,"ap":1.2},"greeks":{"delta":-0.26},"impliedVolatility":0.31},
"AAPL250117C00100000":{"latestQuote":{"bp":6.0,"ap":6.2},"latestTrade":{"p":6.1,"s":3},"dailyBar":{"v":140},"greeks":{"delta":0.74},"impliedVolatility":0.3},
"BROKEN":{}
},"next_page_token":"abc"}`
	page2 := `{"snapshots":{"AAPL250214C00110000":{"latestTrade":{"p":2.5,"s":1},"impliedVolatility":0.28}},"next_page_token":null}`

	var tokens []string
	client := newTestClient(t, "alpaca", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta1/options/snapshots/AAPL", r.URL.Path)
		assert.Equal(t, "indicative", r.URL.Query().Get("feed"))
		token := r.URL.Query().Get("page_token")
		tokens = append(tokens, token)
		if token == "" {
			_, _ = fmt.Fprint(w, page1)
			return
		}
		_, _ = fmt.Fprint(w, page2)
	}, nil)

	chain, err := providers.NewAlpaca(client, "").FetchOptionChain(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "abc"}, tokens)
	assert.Equal(t, providers.AlpacaName, chain.Source)
	require.Len(t, chain.Contracts, 3)

	call := chain.Contracts[0]
	assert.Equal(t, "AAPL250117C00100000", call.Symbol)
	assert.Equal(t, models.OptionTypeCall, call.Type)
	assert.Equal(t, 6.0, call.BidPrice)
	assert.Equal(t, 6.2, call.AskPrice)
	assert.Equal(t, 6.1, call.LastPrice)
	assert.Equal(t, int64(140), call.Volume)
	assert.Zero(t, call.OpenInterest)
	require.NotNil(t, call.Delta)
	assert.Equal(t, 0.74, *call.Delta)

	put := chain.Contracts[1]
	assert.Equal(t, models.OptionTypePut, put.Type)
	require.NotNil(t, put.Delta)
	assert.Equal(t, -0.26, *put.Delta)

	assert.Nil(t, chain.Contracts[2].Delta)
	assert.Equal(t, 110.0, chain.Contracts[2].StrikePrice)
}

func TestAlpaca_AuthHeaders(t *testing.T) {
	headers := providers.AlpacaHeaders("key", "secret")
	client := newTestClient(t, "alpaca", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("APCA-API-KEY-ID"))
		assert.Equal(t, "secret", r.Header.Get("APCA-API-SECRET-KEY"))
		w.WriteHeader(http.StatusForbidden)
		_, _ = fmt.Fprint(w, `{"message":"forbidden"}`)
	}, nil)
	for k, v := range headers {
		client.SetHeader(k, v)
	}

	_, err := providers.NewAlpaca(client, "opra").FetchOptionChain(context.Background(), "AAPL")
	var se *providers.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.False(t, providers.IsRetryable(err))
}

func TestAlpaca_EmptyChain(t *testing.T) {
	client := newTestClient(t, "alpaca", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"snapshots":{}}`)
	}, nil)

	_, err := providers.NewAlpaca(client, "").FetchOptionChain(context.Background(), "AAPL")
	assert.ErrorIs(t, err, providers.ErrNoData)
}

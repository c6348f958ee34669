package options

import (
	"math"
	"testing"
	"time"

	"github.com/irfndi/market-gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

func floatPtr(v float64) *float64 { return &v }

func int64Ptr(v int64) *int64 { return &v }

func TestBlackScholesDelta_InTheMoneyCall(t *testing.T) {
	delta, err := BlackScholesDelta(105, 100, 30.0/365.0, 0.3, 0.03, models.OptionTypeCall)
	require.NoError(t, err)

	assert.Greater(t, delta, 0.5)
	assert.Less(t, delta, 1.0)
	assert.InDelta(t, 0.7385728989776061, delta, 1e-9)
}

func TestBlackScholesDelta_PutCallParity(t *testing.T) {
	call, err := BlackScholesDelta(95, 100, 0.25, 0.4, 0.02, models.OptionTypeCall)
	require.NoError(t, err)
	put, err := BlackScholesDelta(95, 100, 0.25, 0.4, 0.02, models.OptionTypePut)
	require.NoError(t, err)

	assert.InDelta(t, call-1, put, 1e-12)
	assert.Less(t, put, 0.0)
	assert.GreaterOrEqual(t, put, -1.0)
}

func TestBlackScholesDelta_Errors(t *testing.T) {
	tests := []struct {
		name   string
		years  float64
		vol    float64
		spot   float64
		sentry error
	}{
		{"expired", 0, 0.3, 100, models.ErrExpiredContract},
		{"negative time", -0.1, 0.3, 100, models.ErrExpiredContract},
		{"zero volatility", 0.1, 0, 100, models.ErrInvalidVolatility},
		{"negative volatility", 0.1, -0.2, 100, models.ErrInvalidVolatility},
		{"zero spot", 0.1, 0.2, 0, models.ErrInvalidPriceData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BlackScholesDelta(tt.spot, 100, tt.years, tt.vol, 0.03, models.OptionTypeCall)
			assert.ErrorIs(t, err, tt.sentry)
		})
	}
}

func TestQuoteOf(t *testing.T) {
	t.Run("two sided uses mid", func(t *testing.T) {
		q, err := QuoteOf(models.OptionContract{BidPrice: 9, AskPrice: 10, LastPrice: 12})
		require.NoError(t, err)
		assert.True(t, q.TwoSided)
		assert.InDelta(t, 9.5, q.Premium, 1e-12)
		assert.InDelta(t, 9.5, q.Mid, 1e-12)
		assert.InDelta(t, 1.0, q.Spread, 1e-12)
		assert.InDelta(t, 0.105263, q.SpreadPct, 1e-6)
	})

	t.Run("one sided falls back to last", func(t *testing.T) {
		q, err := QuoteOf(models.OptionContract{BidPrice: 0, AskPrice: 10, LastPrice: 8})
		require.NoError(t, err)
		assert.False(t, q.TwoSided)
		assert.Equal(t, 8.0, q.Premium)
		assert.Equal(t, 0.0, q.Spread)
		assert.Equal(t, 0.0, q.SpreadPct)
	})

	t.Run("no price", func(t *testing.T) {
		_, err := Premium(models.OptionContract{Symbol: "X", AskPrice: 3})
		assert.ErrorIs(t, err, models.ErrNoPricingData)
	})

	t.Run("crossed book falls back to last", func(t *testing.T) {
		q, err := QuoteOf(models.OptionContract{BidPrice: 6, AskPrice: 4, LastPrice: 5.1})
		require.NoError(t, err)
		assert.False(t, q.TwoSided)
		assert.Equal(t, 5.1, q.Premium)
		assert.Equal(t, 0.0, q.SpreadPct)
	})

	t.Run("crossed book without last trade", func(t *testing.T) {
		_, err := QuoteOf(models.OptionContract{Symbol: "X", BidPrice: 6, AskPrice: 4})
		assert.ErrorIs(t, err, models.ErrNoPricingData)
	})

	t.Run("locked book is two sided", func(t *testing.T) {
		q, err := QuoteOf(models.OptionContract{BidPrice: 5, AskPrice: 5})
		require.NoError(t, err)
		assert.True(t, q.TwoSided)
		assert.Equal(t, 0.0, q.SpreadPct)
	})
}

func TestDaysToExpiration(t *testing.T) {
	exp := time.Date(2025, 1, 32, 15, 30, 0, 0, time.UTC) // Feb 1st, time of day ignored
	assert.InDelta(t, 30.0, DaysToExpiration(exp, testNow), 1e-12)

	noon := testNow.Add(12 * time.Hour)
	assert.InDelta(t, 29.5, DaysToExpiration(exp, noon), 1e-12)

	assert.InDelta(t, 0.0, DaysToExpiration(testNow, testNow), 1e-12)
	assert.Less(t, DaysToExpiration(testNow.AddDate(0, 0, -3), testNow), 0.0)
}

func TestContractDelta_PrefersFeed(t *testing.T) {
	c := models.OptionContract{
		Symbol:            "AAPL250201C00100000",
		StrikePrice:       100,
		Type:              models.OptionTypeCall,
		ImpliedVolatility: 0.3,
		Delta:             floatPtr(0.42),
	}
	delta, fromFeed, err := ContractDelta(c, 105, 30, 0.03)
	require.NoError(t, err)
	assert.True(t, fromFeed)
	assert.Equal(t, 0.42, delta)

	c.Delta = nil
	delta, fromFeed, err = ContractDelta(c, 105, 30, 0.03)
	require.NoError(t, err)
	assert.False(t, fromFeed)
	assert.InDelta(t, 0.7385728989776061, delta, 1e-9)

	for _, iv := range []float64{0, -0.3} {
		c.ImpliedVolatility = iv
		_, _, err = ContractDelta(c, 105, 30, 0.03)
		assert.ErrorIs(t, err, models.ErrInvalidVolatility, "iv %v", iv)
	}
}

func TestContractScore(t *testing.T) {
	assert.InDelta(t, 2*0.5*(100/9.5)/2, ContractScore(2, 0.5, 100, 9.5, 30), 1e-12)
	// puts score on the magnitude of delta
	assert.Equal(t, ContractScore(2, 0.5, 100, 9.5, 30), ContractScore(2, -0.5, 100, 9.5, 30))
	assert.Equal(t, 0.0, ContractScore(2, 0.5, 100, 0, 30))
	assert.Less(t, ContractScore(1, 0.5, 100, 5, 60), ContractScore(1, 0.5, 100, 5, 10))
	assert.False(t, math.IsNaN(ContractScore(0, 0, 100, 5, 10)))
}

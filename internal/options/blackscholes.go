package options

import (
	"fmt"
	"math"

	"github.com/irfndi/market-gateway/internal/models"
	"gonum.org/v1/gonum/stat/distuv"
)

// DaysPerYear converts calendar days to the Black-Scholes time axis
const DaysPerYear = 365.0

// BlackScholesDelta returns the Black-Scholes delta of a European option.
// Calls are N(d1) and puts N(d1)-1, so the result always lies in [-1, 1].
//
// Parameters:
//   - spot, strike: underlying and strike price, both positive
//   - years: time to expiry in years
//   - volatility: annualized implied volatility
//   - rfAnnual: continuously applied annual risk-free rate
//
// Returns ExpiredContract for years <= 0 and InvalidVolatility for volatility <= 0.
func BlackScholesDelta(spot, strike, years, volatility, rfAnnual float64, optionType models.OptionType) (float64, error) {
	if years <= 0 || math.IsNaN(years) {
		return 0, models.NewEngineError(models.KindExpiredContract, "", fmt.Sprintf("time to expiry %v years", years))
	}
	if volatility <= 0 || math.IsNaN(volatility) || math.IsInf(volatility, 0) {
		return 0, models.NewEngineError(models.KindInvalidVolatility, "", fmt.Sprintf("volatility %v", volatility))
	}
	if spot <= 0 || strike <= 0 || math.IsNaN(spot) || math.IsNaN(strike) {
		return 0, models.NewEngineError(models.KindInvalidPriceData, "", fmt.Sprintf("spot %v strike %v", spot, strike))
	}

	d1 := (math.Log(spot/strike) + (rfAnnual+volatility*volatility/2)*years) / (volatility * math.Sqrt(years))
	nd1 := distuv.UnitNormal.CDF(d1)
	if optionType == models.OptionTypePut {
		return nd1 - 1, nil
	}
	return nd1, nil
}

package quant

import (
	"fmt"
	"math"

	"github.com/irfndi/market-gateway/internal/models"
	"gonum.org/v1/gonum/stat"
)

// ReturnSeries holds simple period-over-period returns and the prices they came from
type ReturnSeries struct {
	Prices  []float64
	Returns []float64
}

// ComputeReturnSeries converts an ordered price sequence into simple returns.
// Fails with InsufficientData for fewer than 2 prices and InvalidPriceData for a
// non-positive or non-finite price.
func ComputeReturnSeries(prices []float64) (*ReturnSeries, error) {
	if len(prices) < 2 {
		return nil, models.NewEngineError(models.KindInsufficientData, "",
			fmt.Sprintf("need at least 2 prices, got %d", len(prices)))
	}
	for i, p := range prices {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, models.NewEngineError(models.KindInvalidPriceData, "",
				fmt.Sprintf("price %v at index %d", p, i))
		}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns[i-1] = prices[i]/prices[i-1] - 1
	}

	owned := make([]float64, len(prices))
	copy(owned, prices)
	return &ReturnSeries{Prices: owned, Returns: returns}, nil
}

// Len is the number of return observations
func (s *ReturnSeries) Len() int {
	return len(s.Returns)
}

// Mean is the arithmetic mean per-period return
func (s *ReturnSeries) Mean() float64 {
	return stat.Mean(s.Returns, nil)
}

// StdDev is the per-period sample standard deviation; 0 with fewer than 2 returns
func (s *ReturnSeries) StdDev() float64 {
	if len(s.Returns) < 2 {
		return 0
	}
	return stat.StdDev(s.Returns, nil)
}

// Variance is the per-period sample variance; 0 with fewer than 2 returns
func (s *ReturnSeries) Variance() float64 {
	if len(s.Returns) < 2 {
		return 0
	}
	return stat.Variance(s.Returns, nil)
}

// Volatility is the annualized sample standard deviation
func (s *ReturnSeries) Volatility(periodsPerYear int) float64 {
	return s.StdDev() * math.Sqrt(float64(periodsPerYear))
}

// DownsideDeviation is the per-period semi-deviation below targetPerPeriod:
// sqrt(mean(min(0, r - target)^2)) over all observations.
func (s *ReturnSeries) DownsideDeviation(targetPerPeriod float64) float64 {
	if len(s.Returns) == 0 {
		return 0
	}
	var sumSq float64
	for _, r := range s.Returns {
		d := math.Min(0, r-targetPerPeriod)
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(s.Returns)))
}

// MaxDrawdown walks the price curve and returns the most negative (v-peak)/peak,
// or 0 when prices never fall below a prior peak.
func (s *ReturnSeries) MaxDrawdown() float64 {
	if len(s.Prices) == 0 {
		return 0
	}
	peak := s.Prices[0]
	maxDD := 0.0
	for _, v := range s.Prices {
		if v > peak {
			peak = v
		}
		dd := (v - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// CAGR is (last/first)^(periodsPerYear/n) - 1 where n is the number of returns
func (s *ReturnSeries) CAGR(periodsPerYear int) float64 {
	n := len(s.Returns)
	if n == 0 {
		return 0
	}
	first := s.Prices[0]
	last := s.Prices[len(s.Prices)-1]
	return math.Pow(last/first, float64(periodsPerYear)/float64(n)) - 1
}

package quant

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
)

// Default technical indicator periods
const (
	DefaultRSIPeriod = 14
	DefaultSMAPeriod = 20
	DefaultEMAPeriod = 20
)

// TechnicalSnapshot holds the latest values of a few trend/momentum indicators.
// Nil fields mean the series was too short for that indicator.
type TechnicalSnapshot struct {
	LastClose float64  `json:"last_close"`
	RSI       *float64 `json:"rsi_14,omitempty"`
	SMA       *float64 `json:"sma_20,omitempty"`
	EMA       *float64 `json:"ema_20,omitempty"`
	AboveSMA  *bool    `json:"above_sma,omitempty"`
}

// ComputeTechnicalSnapshot evaluates RSI, SMA and EMA over the close series
func ComputeTechnicalSnapshot(closes []float64) TechnicalSnapshot {
	var snap TechnicalSnapshot
	if len(closes) == 0 {
		return snap
	}
	snap.LastClose = closes[len(closes)-1]

	if len(closes) > DefaultRSIPeriod {
		rsi := momentum.NewRsiWithPeriod[float64](DefaultRSIPeriod)
		snap.RSI = lastValue(helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes))))
	}

	if len(closes) >= DefaultSMAPeriod {
		sma := trend.NewSmaWithPeriod[float64](DefaultSMAPeriod)
		snap.SMA = lastValue(helper.ChanToSlice(sma.Compute(helper.SliceToChan(closes))))
		if snap.SMA != nil {
			above := snap.LastClose > *snap.SMA
			snap.AboveSMA = &above
		}
	}

	if len(closes) >= DefaultEMAPeriod {
		ema := trend.NewEmaWithPeriod[float64](DefaultEMAPeriod)
		snap.EMA = lastValue(helper.ChanToSlice(ema.Compute(helper.SliceToChan(closes))))
	}

	return snap
}

func lastValue(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	v := finiteOrZero(values[len(values)-1])
	return &v
}

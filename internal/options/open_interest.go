package options

import (
	"time"

	"github.com/irfndi/market-gateway/internal/models"
)

// DTEWindow is an inclusive days-to-expiration range
type DTEWindow struct {
	Min float64 `json:"min_dte"`
	Max float64 `json:"max_dte"`
}

// Expiration windows of the open-interest leaders
var (
	ShortTermWindow = DTEWindow{Min: 1, Max: 60}
	LeapWindow      = DTEWindow{Min: 365, Max: 730}
)

// Contains reports whether dte falls inside the window
func (w DTEWindow) Contains(dte float64) bool {
	return dte >= w.Min && dte <= w.Max
}

// HighestOpenInterest returns the contract of the given side with the largest open
// interest expiring inside the window, or nil when none qualifies. Ties go to the
// nearer expiration, then to the lower contract symbol.
func HighestOpenInterest(contracts []models.OptionContract, side Side, window DTEWindow, now time.Time) *models.OptionContract {
	var best *models.OptionContract
	var bestDTE float64
	for i := range contracts {
		c := &contracts[i]
		if !side.Matches(c.Type) {
			continue
		}
		dte := DaysToExpiration(c.ExpirationDate, now)
		if dte <= 0 || !window.Contains(dte) {
			continue
		}
		if best == nil || beatsOnOpenInterest(c, dte, best, bestDTE) {
			best, bestDTE = c, dte
		}
	}
	if best == nil {
		return nil
	}
	leader := *best
	return &leader
}

func beatsOnOpenInterest(c *models.OptionContract, dte float64, best *models.OptionContract, bestDTE float64) bool {
	if c.OpenInterest != best.OpenInterest {
		return c.OpenInterest > best.OpenInterest
	}
	if dte != bestDTE {
		return dte < bestDTE
	}
	return c.Symbol < best.Symbol
}

package options

import (
	"math"
	"strings"

	"github.com/irfndi/market-gateway/internal/models"
)

// Side selects which option types survive filtering
type Side string

const (
	SideBoth Side = "both"
	SideCall Side = "call"
	SidePut  Side = "put"
)

// ParseSide accepts call, put, both and their short forms; empty means both
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both", "all", "any":
		return SideBoth, nil
	case "call", "calls", "c":
		return SideCall, nil
	case "put", "puts", "p":
		return SidePut, nil
	default:
		return "", models.InvalidConfigf("unknown side %q", s)
	}
}

// Matches reports whether an option type passes the side filter
func (s Side) Matches(t models.OptionType) bool {
	switch s {
	case SideCall:
		return t == models.OptionTypeCall
	case SidePut:
		return t == models.OptionTypePut
	default:
		return true
	}
}

// FilterCriteria bounds the contracts considered for ranking. Nil bounds are open.
// Delta bounds apply to the absolute delta so they read the same for calls and puts.
type FilterCriteria struct {
	MinDTE          float64
	MaxDTE          float64
	Side            Side
	MinDelta        *float64
	MaxDelta        *float64
	MinPremium      *float64
	MaxPremium      *float64
	MinVolume       *int64
	MinOpenInterest *int64
	MinStrikeRatio  *float64
	MaxStrikeRatio  *float64
	MaxSpreadPct    *float64
}

// DefaultFilterCriteria keeps both sides expiring in 7 to 60 days
func DefaultFilterCriteria() FilterCriteria {
	return FilterCriteria{MinDTE: 7, MaxDTE: 60, Side: SideBoth}
}

// Validate rejects inverted or negative bounds
func (f FilterCriteria) Validate() error {
	if f.MinDTE < 0 || math.IsNaN(f.MinDTE) {
		return models.InvalidConfigf("min_dte must be non-negative, got %v", f.MinDTE)
	}
	if f.MaxDTE < f.MinDTE || math.IsNaN(f.MaxDTE) {
		return models.InvalidConfigf("max_dte %v is below min_dte %v", f.MaxDTE, f.MinDTE)
	}
	if _, err := ParseSide(string(f.Side)); err != nil {
		return err
	}
	if err := checkRange("delta", f.MinDelta, f.MaxDelta); err != nil {
		return err
	}
	if err := checkRange("premium", f.MinPremium, f.MaxPremium); err != nil {
		return err
	}
	if err := checkRange("strike_ratio", f.MinStrikeRatio, f.MaxStrikeRatio); err != nil {
		return err
	}
	if f.MaxSpreadPct != nil && *f.MaxSpreadPct < 0 {
		return models.InvalidConfigf("max_spread_pct must be non-negative, got %v", *f.MaxSpreadPct)
	}
	if f.MinVolume != nil && *f.MinVolume < 0 {
		return models.InvalidConfigf("min_volume must be non-negative")
	}
	if f.MinOpenInterest != nil && *f.MinOpenInterest < 0 {
		return models.InvalidConfigf("min_open_interest must be non-negative")
	}
	return nil
}

func checkRange(name string, lo, hi *float64) error {
	if lo != nil && math.IsNaN(*lo) || hi != nil && math.IsNaN(*hi) {
		return models.InvalidConfigf("%s bounds must be numbers", name)
	}
	if lo != nil && hi != nil && *lo > *hi {
		return models.InvalidConfigf("min_%s %v exceeds max_%s %v", name, *lo, name, *hi)
	}
	return nil
}

func within(v float64, lo, hi *float64) bool {
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}

func atLeast(v int64, lo *int64) bool {
	return lo == nil || v >= *lo
}

package quant

import "strings"

// Periods per year for the intervals the quote providers support.
const (
	DailyPeriodsPerYear   = 252
	WeeklyPeriodsPerYear  = 52
	MonthlyPeriodsPerYear = 12
)

// PeriodsPerYear infers the annualization factor from a bar interval.
// An explicit override always wins, even a non-positive one; Params.Validate rejects it.
func PeriodsPerYear(interval string, override *int) int {
	if override != nil {
		return *override
	}
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "1wk", "1w", "weekly", "10080":
		return WeeklyPeriodsPerYear
	case "1mo", "1m", "monthly":
		return MonthlyPeriodsPerYear
	default:
		return DailyPeriodsPerYear
	}
}

package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/market-gateway/internal/config"
	"github.com/irfndi/market-gateway/internal/options"
	"github.com/irfndi/market-gateway/internal/quant"
	"github.com/irfndi/market-gateway/internal/services"
	"github.com/irfndi/market-gateway/internal/utils"
	"github.com/irfndi/market-gateway/pkg/providers"
)

// maxSymbolsPerRequest bounds the fan-out a single request can trigger
const maxSymbolsPerRequest = 50

// Defaults are the engine parameters used when a request leaves them out
type Defaults struct {
	Source              string
	Range               string
	Interval            string
	MetricsRiskFreeRate float64
	OptionsRiskFreeRate float64
	Weights             quant.CompositeWeights
	Filters             options.FilterCriteria
	Limit               int
	Concurrency         int
	Undervalued         options.UndervaluedConfig
	TrendingTickers     int
}

// DefaultsFromConfig maps the engine section of the configuration
func DefaultsFromConfig(cfg config.EngineConfig) Defaults {
	filters := options.DefaultFilterCriteria()
	filters.MinDTE = cfg.MinDTE
	filters.MaxDTE = cfg.MaxDTE
	return Defaults{
		Source:              providers.YahooName,
		Range:               cfg.Range,
		Interval:            cfg.Interval,
		MetricsRiskFreeRate: cfg.MetricsRiskFreeRate,
		OptionsRiskFreeRate: cfg.OptionsRiskFreeRate,
		Weights: quant.CompositeWeights{
			Sharpe:  cfg.SharpeWeight,
			Sortino: cfg.SortinoWeight,
			Calmar:  cfg.CalmarWeight,
		},
		Filters:     filters,
		Limit:       cfg.Limit,
		Concurrency: cfg.Concurrency,
		Undervalued: options.UndervaluedConfig{
			LiquidityThreshold:  cfg.LiquidityThreshold,
			MaxAcceptableSpread: cfg.MaxAcceptableSpread,
			MomentumFloor:       cfg.MomentumFloor,
			MomentumCeiling:     cfg.MomentumCeiling,
			LiquidityWeight:     cfg.LiquidityWeight,
			SpreadWeight:        cfg.SpreadWeight,
			MomentumWeight:      cfg.MomentumWeight,
		},
		TrendingTickers: 10,
	}
}

// querySymbols accepts both symbols=A,B and repeated symbols=A&symbols=B
func querySymbols(c *gin.Context, name string) ([]string, error) {
	var out []string
	for _, raw := range c.QueryArray(name) {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	if len(out) == 0 {
		return nil, utils.NewFieldError(name, "at least one symbol is required")
	}
	if len(out) > maxSymbolsPerRequest {
		return nil, utils.NewFieldError(name, "at most %d symbols per request, got %d", maxSymbolsPerRequest, len(out))
	}
	return out, nil
}

func queryString(c *gin.Context, name, fallback string) string {
	if v := strings.TrimSpace(c.Query(name)); v != "" {
		return v
	}
	return fallback
}

// queryFloat returns nil when the parameter is absent
func queryFloat(c *gin.Context, name string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, utils.NewFieldError(name, "must be a number, got %q", raw)
	}
	return &v, nil
}

func queryFloatOr(c *gin.Context, name string, fallback float64) (float64, error) {
	v, err := queryFloat(c, name)
	if err != nil || v == nil {
		return fallback, err
	}
	return *v, nil
}

func queryInt(c *gin.Context, name string) (*int64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, utils.NewFieldError(name, "must be an integer, got %q", raw)
	}
	return &v, nil
}

func queryIntOr(c *gin.Context, name string, fallback int) (int, error) {
	v, err := queryInt(c, name)
	if err != nil || v == nil {
		return fallback, err
	}
	return int(*v), nil
}

func queryBool(c *gin.Context, name string) (bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, utils.NewFieldError(name, "must be a boolean, got %q", raw)
	}
	return v, nil
}

// paramReader collects the first parse error so handlers can read every
// parameter and check once
type paramReader struct {
	c   *gin.Context
	err error
}

func (p *paramReader) float(name string) *float64 {
	v, err := queryFloat(p.c, name)
	p.keep(err)
	return v
}

func (p *paramReader) floatOr(name string, fallback float64) float64 {
	v, err := queryFloatOr(p.c, name, fallback)
	p.keep(err)
	return v
}

func (p *paramReader) int(name string) *int64 {
	v, err := queryInt(p.c, name)
	p.keep(err)
	return v
}

func (p *paramReader) optionalInt(name string) *int {
	v := p.int(name)
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}

func (p *paramReader) intOr(name string, fallback int) int {
	v, err := queryIntOr(p.c, name, fallback)
	p.keep(err)
	return v
}

func (p *paramReader) bool(name string) bool {
	v, err := queryBool(p.c, name)
	p.keep(err)
	return v
}

func (p *paramReader) keep(err error) {
	if p.err == nil && err != nil {
		p.err = err
	}
}

// metricsRequest reads the history and composite parameters shared by every engine route
func (p *paramReader) metricsRequest(d Defaults) services.MetricsRequest {
	return services.MetricsRequest{
		Source:         strings.ToLower(queryString(p.c, "source", d.Source)),
		Range:          strings.ToLower(queryString(p.c, "range", d.Range)),
		Interval:       strings.ToLower(queryString(p.c, "interval", d.Interval)),
		RiskFreeRate:   p.floatOr("rf_annual", d.MetricsRiskFreeRate),
		TargetReturn:   p.float("target_return_annual"),
		PeriodsPerYear: p.optionalInt("periods_per_year"),
		Weights: quant.CompositeWeights{
			Sharpe:  p.floatOr("sharpe_w", d.Weights.Sharpe),
			Sortino: p.floatOr("sortino_w", d.Weights.Sortino),
			Calmar:  p.floatOr("calmar_w", d.Weights.Calmar),
		},
		Concurrency: p.intOr("concurrency", d.Concurrency),
	}
}

// filters reads the contract filters over the configured defaults
func (p *paramReader) filters(d Defaults, sideParam string) options.FilterCriteria {
	f := d.Filters
	side, err := options.ParseSide(p.c.Query(sideParam))
	p.keep(err)
	f.Side = side
	f.MinDTE = p.floatOr("min_dte", f.MinDTE)
	f.MaxDTE = p.floatOr("max_dte", f.MaxDTE)
	f.MinDelta = p.float("min_delta")
	f.MaxDelta = p.float("max_delta")
	f.MinPremium = p.float("min_premium")
	f.MaxPremium = p.float("max_premium")
	f.MinVolume = p.int("min_volume")
	f.MinOpenInterest = p.int("min_open_interest")
	f.MinStrikeRatio = p.float("min_strike_ratio")
	f.MaxStrikeRatio = p.float("max_strike_ratio")
	f.MaxSpreadPct = p.float("max_spread_pct")
	return f
}

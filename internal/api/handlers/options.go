package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/market-gateway/internal/middleware"
	"github.com/irfndi/market-gateway/internal/models"
	"github.com/irfndi/market-gateway/internal/options"
	"github.com/irfndi/market-gateway/internal/services"
	"github.com/irfndi/market-gateway/internal/utils"
	"github.com/sirupsen/logrus"
)

// OptionsEngine ranks option contracts over resolved underlyings
type OptionsEngine interface {
	Recommend(ctx context.Context, req services.RecommendationRequest) (*services.RecommendationResult, error)
	HighOpenInterest(ctx context.Context, req services.OpenInterestRequest) (*services.OpenInterestResult, error)
}

// TrendingSource supplies the merged trending ticker list
type TrendingSource interface {
	GetTrending(ctx context.Context, limit int) (*services.TrendingResult, error)
}

type OptionsHandler struct {
	engine   OptionsEngine
	trending TrendingSource
	defaults Defaults
	logger   logrus.FieldLogger
}

func NewOptionsHandler(engine OptionsEngine, trending TrendingSource, defaults Defaults, logger logrus.FieldLogger) *OptionsHandler {
	return &OptionsHandler{engine: engine, trending: trending, defaults: defaults, logger: logger}
}

// TrendingOptionsResponse is a recommendation over the current trending tickers
type TrendingOptionsResponse struct {
	*services.RecommendationResult
	Trending []services.TrendingTicker `json:"trending"`
}

// rankingRequest reads the parameters shared by both option routes
func (h *OptionsHandler) rankingRequest(c *gin.Context, sideParam string) (services.RecommendationRequest, error) {
	p := &paramReader{c: c}
	req := services.RecommendationRequest{
		Filters:        p.filters(h.defaults, sideParam),
		Limit:          p.intOr("limit", h.defaults.Limit),
		PerSymbolLimit: p.intOr("per_symbol_limit", 0),
		UnderlyingTop:  p.intOr("underlying_top", 0),
		History:        p.metricsRequest(h.defaults),
		RiskFreeRate:   p.floatOr("rf_annual", h.defaults.OptionsRiskFreeRate),
	}
	// rf_annual prices the options; the underlyings' ratios keep the metrics rate
	req.History.RiskFreeRate = p.floatOr("metrics_rf_annual", h.defaults.MetricsRiskFreeRate)
	return req, p.err
}

// Recommend handles GET /api/v1/options/recommendations?symbols=
func (h *OptionsHandler) Recommend(c *gin.Context) {
	symbols, err := querySymbols(c, "symbols")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	req, err := h.rankingRequest(c, "side")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	withIndicators, err := queryBool(c, "undervalued")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	req.Symbols = symbols
	if withIndicators {
		cfg := h.defaults.Undervalued
		req.Undervalued = &cfg
	}
	middleware.AddSpanAttribute(c, "options.symbols", symbols)

	result, err := h.engine.Recommend(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Trending handles GET /api/v1/options/trending: the trending tickers ranked
// through the same engine with undervalued indicators attached
func (h *OptionsHandler) Trending(c *gin.Context) {
	req, err := h.rankingRequest(c, "option_type")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	tickers, err := queryIntOr(c, "tickers", h.defaults.TrendingTickers)
	if err == nil && (tickers <= 0 || tickers > maxSymbolsPerRequest) {
		err = utils.NewFieldError("tickers", "must be between 1 and %d", maxSymbolsPerRequest)
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	trending, err := h.trending.GetTrending(c.Request.Context(), tickers)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	req.Symbols = trending.Symbols()
	if len(req.Symbols) == 0 {
		c.JSON(http.StatusOK, TrendingOptionsResponse{
			RecommendationResult: &services.RecommendationResult{
				Options:     []options.ScoredOption{},
				Errors:      []models.SymbolError{},
				Underlyings: []string{},
			},
			Trending:             trending.Tickers,
		})
		return
	}
	cfg := h.defaults.Undervalued
	req.Undervalued = &cfg

	result, err := h.engine.Recommend(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, TrendingOptionsResponse{RecommendationResult: result, Trending: trending.Tickers})
}

// HighOpenInterest handles GET /api/v1/options/high-open-interest/:ticker
func (h *OptionsHandler) HighOpenInterest(c *gin.Context) {
	h.openInterest(c, []string{c.Param("ticker")})
}

// HighOpenInterestBatch handles GET /api/v1/options/high-open-interest?tickers=A,B
func (h *OptionsHandler) HighOpenInterestBatch(c *gin.Context) {
	tickers, err := querySymbols(c, "tickers")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.openInterest(c, tickers)
}

func (h *OptionsHandler) openInterest(c *gin.Context, tickers []string) {
	// calls unless asked otherwise
	side := options.SideCall
	if raw := c.Query("option_type"); raw != "" {
		parsed, err := options.ParseSide(raw)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		side = parsed
	}
	middleware.AddSpanAttribute(c, "options.symbols", tickers)

	result, err := h.engine.HighOpenInterest(c.Request.Context(), services.OpenInterestRequest{
		Symbols:     tickers,
		Side:        side,
		Concurrency: h.defaults.Concurrency,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

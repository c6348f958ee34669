package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/market-gateway/internal/middleware"
	"github.com/irfndi/market-gateway/internal/services"
	"github.com/irfndi/market-gateway/internal/utils"
	"github.com/sirupsen/logrus"
)

// MetricsEngine computes risk metrics for one or many symbols
type MetricsEngine interface {
	GetMetrics(ctx context.Context, symbol string, req services.MetricsRequest) (*services.SymbolMetrics, error)
	RankSymbols(ctx context.Context, symbols []string, req services.MetricsRequest) (*services.RankedMetrics, error)
}

type MetricsHandler struct {
	engine   MetricsEngine
	defaults Defaults
	logger   logrus.FieldLogger
}

func NewMetricsHandler(engine MetricsEngine, defaults Defaults, logger logrus.FieldLogger) *MetricsHandler {
	return &MetricsHandler{engine: engine, defaults: defaults, logger: logger}
}

// RankResponse lists symbols best composite score first
type RankResponse struct {
	services.RankedMetrics
	Count int `json:"count"`
}

// GetMetrics handles GET /api/v1/metrics?symbol=
func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		respondError(c, h.logger, utils.NewFieldError("symbol", "is required"))
		return
	}
	p := &paramReader{c: c}
	req := p.metricsRequest(h.defaults)
	if p.err != nil {
		respondError(c, h.logger, p.err)
		return
	}
	middleware.AddSpanAttribute(c, "metrics.symbol", symbol)

	result, err := h.engine.GetMetrics(c.Request.Context(), symbol, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RankSymbols handles GET /api/v1/rank?symbols=A,B
func (h *MetricsHandler) RankSymbols(c *gin.Context) {
	symbols, err := querySymbols(c, "symbols")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	p := &paramReader{c: c}
	req := p.metricsRequest(h.defaults)
	if p.err != nil {
		respondError(c, h.logger, p.err)
		return
	}
	middleware.AddSpanAttribute(c, "metrics.symbols", symbols)

	result, err := h.engine.RankSymbols(c.Request.Context(), symbols, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, RankResponse{RankedMetrics: *result, Count: len(result.Results)})
}

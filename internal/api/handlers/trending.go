package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/market-gateway/internal/utils"
	"github.com/sirupsen/logrus"
)

const maxTrendingLimit = 100

type TrendingHandler struct {
	source TrendingSource
	logger logrus.FieldLogger
}

func NewTrendingHandler(source TrendingSource, logger logrus.FieldLogger) *TrendingHandler {
	return &TrendingHandler{source: source, logger: logger}
}

// TrendingStocks handles GET /api/v1/trending/stocks?limit=
func (h *TrendingHandler) TrendingStocks(c *gin.Context) {
	limit, err := queryIntOr(c, "limit", 20)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if limit <= 0 || limit > maxTrendingLimit {
		respondError(c, h.logger, utils.NewFieldError("limit", "must be between 1 and %d", maxTrendingLimit))
		return
	}

	result, err := h.source.GetTrending(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tickers": result.Tickers,
		"failed":  result.Failed,
		"count":   len(result.Tickers),
	})
}

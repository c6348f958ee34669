package api

import (
	"github.com/gin-gonic/gin"
	"github.com/irfndi/market-gateway/internal/api/handlers"
	"github.com/irfndi/market-gateway/internal/metrics"
	"github.com/irfndi/market-gateway/internal/middleware"
	"github.com/sirupsen/logrus"
)

// RouteDeps is everything the HTTP layer is built from
type RouteDeps struct {
	ServiceName    string
	AllowedOrigins []string
	Metrics        handlers.MetricsEngine
	Options        handlers.OptionsEngine
	Trending       handlers.TrendingSource
	Health         *handlers.HealthHandler
	Collector      *metrics.Collector
	Defaults       handlers.Defaults
	Logger         logrus.FieldLogger
}

// SetupRoutes installs the middleware chain and registers every route
func SetupRoutes(router *gin.Engine, deps RouteDeps) {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	router.Use(
		gin.Recovery(),
		middleware.TelemetryMiddleware(deps.ServiceName),
		middleware.RequestID(),
		middleware.RequestLogger(logger, deps.Collector),
		middleware.CORS(deps.AllowedOrigins),
	)

	if deps.Health != nil {
		router.GET("/health", deps.Health.HealthCheck)
	}
	if deps.Collector != nil {
		router.GET("/metrics", gin.WrapH(deps.Collector.Handler()))
	}

	metricsHandler := handlers.NewMetricsHandler(deps.Metrics, deps.Defaults, logger)
	optionsHandler := handlers.NewOptionsHandler(deps.Options, deps.Trending, deps.Defaults, logger)
	trendingHandler := handlers.NewTrendingHandler(deps.Trending, logger)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/metrics", metricsHandler.GetMetrics)
		v1.GET("/rank", metricsHandler.RankSymbols)

		opts := v1.Group("/options")
		{
			opts.GET("/recommendations", optionsHandler.Recommend)
			opts.GET("/trending", optionsHandler.Trending)
			opts.GET("/high-open-interest", optionsHandler.HighOpenInterestBatch)
			opts.GET("/high-open-interest/:ticker", optionsHandler.HighOpenInterest)
		}

		trending := v1.Group("/trending")
		{
			trending.GET("/stocks", trendingHandler.TrendingStocks)
		}
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/market-gateway/internal/api"
	"github.com/irfndi/market-gateway/internal/api/handlers"
	"github.com/irfndi/market-gateway/internal/cache"
	"github.com/irfndi/market-gateway/internal/config"
	"github.com/irfndi/market-gateway/internal/database"
	"github.com/irfndi/market-gateway/internal/logging"
	"github.com/irfndi/market-gateway/internal/metrics"
	"github.com/irfndi/market-gateway/internal/services"
	"github.com/irfndi/market-gateway/internal/telemetry"
	"github.com/irfndi/market-gateway/pkg/providers"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const serviceName = "market-gateway"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTelemetryWithProvider(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled && cfg.Telemetry.Exporter == telemetry.ExporterOTLP {
		hook, err := newLogHook(ctx, cfg)
		if err != nil {
			logger.WithError(err).Warn("OTLP log export disabled")
		} else {
			logger.AddHook(hook)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = hook.Shutdown(shutdownCtx)
			}()
		}
	}

	var redisClient *database.RedisClient
	if cfg.Redis.Enabled {
		redisClient, err = database.NewRedisConnection(cfg.Redis, logger)
		if err != nil {
			// caching is an optimization; serve uncached rather than not at all
			logger.WithError(err).Warn("Redis unavailable, continuing without cache")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	app := buildApp(cfg, redisClient, logger)
	go monitorResources(ctx, app.optimizer, 30*time.Second, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           app.router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.LogStartup(logger, serviceName, telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logging.LogShutdown(logger, serviceName, "signal received")

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited gracefully")
	return nil
}

// app holds the wired components the server needs after construction
type app struct {
	router    *gin.Engine
	collector *metrics.Collector
	optimizer *services.ResourceOptimizer
	market    *services.MarketDataService
}

// buildApp wires providers, resilience, caching, services and routes. A nil
// redisClient disables caching.
func buildApp(cfg *config.Config, redisClient *database.RedisClient, logger *logrus.Logger) *app {
	collector := metrics.NewCollector()

	var marketCache *cache.RedisMarketCache
	var redisPinger handlers.Pinger
	if redisClient != nil {
		marketCache = cache.NewRedisMarketCache(redisClient.Client, cache.TTLs{
			Prices:   cfg.Cache.PriceTTL,
			Chains:   cfg.Cache.ChainTTL,
			Trending: cfg.Cache.TrendingTTL,
		}, logger)
		redisPinger = redisClient
	}

	breakers := services.NewCircuitBreakerManager(services.CircuitBreakerConfig{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		SuccessThreshold: cfg.CircuitBreaker.SuccessThreshold,
		Timeout:          cfg.CircuitBreaker.Timeout,
	}, providers.IsRetryable, func(name string, _, to services.CircuitBreakerState) {
		collector.SetCircuitState(name, int(to))
	}, logger)

	policy := services.RetryPolicy{MaxRetries: 0}
	if cfg.Retry.Enabled {
		policy = services.DefaultRetryPolicy()
		policy.MaxRetries = cfg.Retry.MaxRetries
		policy.InitialDelay = cfg.Retry.BaseDelay
		policy.MaxDelay = cfg.Retry.MaxDelay
	}
	recovery := services.NewErrorRecoveryManager(breakers, policy, providers.IsRetryable, logger)

	yahoo := providers.NewYahoo(newProviderClient(cfg, providers.YahooName, cfg.Providers.Yahoo.BaseURL, cfg.Providers.Yahoo.Timeout, nil, collector, logger),
		cfg.Providers.Yahoo.Region, cfg.Providers.Yahoo.MaxExpirations)
	kraken := providers.NewKraken(newProviderClient(cfg, providers.KrakenName, cfg.Providers.Kraken.BaseURL, cfg.Providers.Kraken.Timeout, nil, collector, logger))

	// Alpaca carries greeks and is preferred when keys are configured
	chains := []providers.ChainProvider{yahoo}
	if cfg.Providers.Alpaca.Enabled() {
		alpacaCfg := cfg.Providers.Alpaca
		alpaca := providers.NewAlpaca(newProviderClient(cfg, providers.AlpacaName, alpacaCfg.BaseURL, alpacaCfg.Timeout,
			providers.AlpacaHeaders(alpacaCfg.APIKey, alpacaCfg.APISecret), collector, logger), alpacaCfg.Feed)
		chains = []providers.ChainProvider{alpaca, yahoo}
	}

	market := services.NewMarketDataService(services.MarketDataServiceConfig{
		HistoryProviders: []providers.HistoryProvider{yahoo, kraken},
		ChainProviders:   chains,
		Cache:            marketCache,
		Recovery:         recovery,
		Collector:        collector,
		Logger:           logger,
	})

	optimizer := services.NewResourceOptimizer(services.ResourceOptimizerConfig{}, logger)
	metricsService := services.NewMetricsService(market, optimizer, collector, logger)
	optionsService := services.NewOptionsService(market, optimizer, collector, logger)
	trendingService := services.NewTrendingService(
		[]providers.TrendingProvider{yahoo, services.Watchlist(cfg.Providers.Watchlist)},
		marketCache, recovery, collector, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	api.SetupRoutes(router, api.RouteDeps{
		ServiceName:    cfg.Telemetry.ServiceName,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        metricsService,
		Options:        optionsService,
		Trending:       trendingService,
		Health:         handlers.NewHealthHandler(redisPinger, breakers, marketCache, market.Sources()),
		Collector:      collector,
		Defaults:       handlers.DefaultsFromConfig(cfg.Engine),
		Logger:         logger,
	})

	return &app{router: router, collector: collector, optimizer: optimizer, market: market}
}

func newProviderClient(cfg *config.Config, name, baseURL string, timeout time.Duration, headers map[string]string, observer providers.RequestObserver, logger logrus.FieldLogger) *providers.Client {
	opts := providers.ClientOptions{
		Name:     name,
		BaseURL:  baseURL,
		Timeout:  timeout,
		Headers:  headers,
		Observer: observer,
		Logger:   logging.WithComponent(logger, "provider"),
	}
	if cfg.RateLimit.Enabled {
		opts.RequestsPerMinute = cfg.RateLimit.RequestsPerMinute
		opts.Burst = cfg.RateLimit.Burst
	}
	return providers.NewClient(opts)
}

// monitorResources resamples host load so fan-out concurrency follows it
func monitorResources(ctx context.Context, optimizer *services.ResourceOptimizer, interval time.Duration, logger logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := optimizer.UpdateSystemMetrics(ctx); err != nil {
				logger.WithError(err).Debug("Failed to sample system metrics")
			}
		}
	}
}

func telemetryConfig(cfg *config.Config) *telemetry.TelemetryConfig {
	tc := telemetry.DefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	tc.Exporter = cfg.Telemetry.Exporter
	tc.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	tc.ServiceName = cfg.Telemetry.ServiceName
	tc.Environment = cfg.Environment
	tc.SampleRate = cfg.Telemetry.SampleRate
	return tc
}

// newLogHook exports logs next to traces; the log exporter takes host:port
func newLogHook(ctx context.Context, cfg *config.Config) (*logging.OTLPHook, error) {
	hostport, _, err := telemetry.OTLPHostPort(cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return nil, err
	}
	return logging.NewOTLPHook(ctx, logging.OTLPConfig{
		Endpoint:       hostport,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: telemetry.ServiceVersion,
		Environment:    cfg.Environment,
	})
}

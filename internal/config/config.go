package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment    string               `mapstructure:"environment"`
	LogLevel       string               `mapstructure:"log_level"`
	Server         ServerConfig         `mapstructure:"server"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Providers      ProvidersConfig      `mapstructure:"providers"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	Retry          RetryConfig          `mapstructure:"retry"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Telemetry      TelemetryConfig      `mapstructure:"telemetry"`
	Engine         EngineConfig         `mapstructure:"engine"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig holds TTLs for cached upstream responses
type CacheConfig struct {
	PriceTTL    time.Duration `mapstructure:"price_ttl"`
	ChainTTL    time.Duration `mapstructure:"chain_ttl"`
	TrendingTTL time.Duration `mapstructure:"trending_ttl"`
}

type ProvidersConfig struct {
	Yahoo  YahooConfig  `mapstructure:"yahoo"`
	Alpaca AlpacaConfig `mapstructure:"alpaca"`
	Kraken KrakenConfig `mapstructure:"kraken"`
	// Watchlist is merged after the live trending lists
	Watchlist []string `mapstructure:"watchlist"`
}

type YahooConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Region         string        `mapstructure:"region"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxExpirations int           `mapstructure:"max_expirations"`
}

type AlpacaConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key" json:"-" yaml:"-"`
	APISecret string        `mapstructure:"api_secret" json:"-" yaml:"-"`
	Feed      string        `mapstructure:"feed"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether Alpaca credentials are configured
func (c AlpacaConfig) Enabled() bool {
	return c.APIKey != "" && c.APISecret != ""
}

type KrakenConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig applies to each upstream provider independently
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type RetryConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

type CircuitBreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	Exporter     string  `mapstructure:"exporter"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// EngineConfig carries the defaults of the metrics and ranking engine.
// Request parameters override them per call.
type EngineConfig struct {
	MetricsRiskFreeRate float64 `mapstructure:"metrics_rf_annual"`
	OptionsRiskFreeRate float64 `mapstructure:"options_rf_annual"`
	Range               string  `mapstructure:"range"`
	Interval            string  `mapstructure:"interval"`
	SharpeWeight        float64 `mapstructure:"sharpe_weight"`
	SortinoWeight       float64 `mapstructure:"sortino_weight"`
	CalmarWeight        float64 `mapstructure:"calmar_weight"`
	MinDTE              float64 `mapstructure:"min_dte"`
	MaxDTE              float64 `mapstructure:"max_dte"`
	Limit               int     `mapstructure:"limit"`
	Concurrency         int     `mapstructure:"concurrency"`
	LiquidityThreshold  float64 `mapstructure:"liquidity_threshold"`
	MaxAcceptableSpread float64 `mapstructure:"max_acceptable_spread"`
	MomentumFloor       float64 `mapstructure:"momentum_floor"`
	MomentumCeiling     float64 `mapstructure:"momentum_ceiling"`
	LiquidityWeight     float64 `mapstructure:"liquidity_weight"`
	SpreadWeight        float64 `mapstructure:"spread_weight"`
	MomentumWeight      float64 `mapstructure:"momentum_weight"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set default values
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Alpaca uses its own well-known variable names
	if err := v.BindEnv("providers.alpaca.api_key", "ALPACA_API_KEY_ID"); err != nil {
		return nil, fmt.Errorf("failed to bind ALPACA_API_KEY_ID environment variable: %w", err)
	}
	if err := v.BindEnv("providers.alpaca.api_secret", "ALPACA_API_SECRET_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind ALPACA_API_SECRET_KEY environment variable: %w", err)
	}
	if err := v.BindEnv("server.port", "PORT", "SERVER_PORT"); err != nil {
		return nil, fmt.Errorf("failed to bind PORT environment variable: %w", err)
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks values that would otherwise fail deep inside a request
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	e := c.Engine
	if e.SharpeWeight < 0 || e.SortinoWeight < 0 || e.CalmarWeight < 0 {
		return fmt.Errorf("engine composite weights must be non-negative")
	}
	if e.SharpeWeight+e.SortinoWeight+e.CalmarWeight == 0 {
		return fmt.Errorf("engine composite weights must not all be zero")
	}
	if e.MinDTE < 0 || e.MaxDTE < e.MinDTE {
		return fmt.Errorf("engine dte range [%v, %v] is invalid", e.MinDTE, e.MaxDTE)
	}
	if e.Limit < 0 {
		return fmt.Errorf("engine limit must be non-negative, got %d", e.Limit)
	}
	if e.LiquidityThreshold <= 0 || e.MaxAcceptableSpread <= 0 {
		return fmt.Errorf("engine liquidity_threshold and max_acceptable_spread must be positive")
	}
	if e.MomentumCeiling <= e.MomentumFloor {
		return fmt.Errorf("engine momentum_ceiling must exceed momentum_floor")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be positive when enabled")
	}
	switch c.Telemetry.Exporter {
	case "stdout", "otlp", "none", "":
	default:
		return fmt.Errorf("unknown telemetry exporter %q", c.Telemetry.Exporter)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Environment
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Cache
	v.SetDefault("cache.price_ttl", "5m")
	v.SetDefault("cache.chain_ttl", "2m")
	v.SetDefault("cache.trending_ttl", "10m")

	// Providers
	v.SetDefault("providers.yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("providers.yahoo.region", "US")
	v.SetDefault("providers.yahoo.timeout", "15s")
	v.SetDefault("providers.yahoo.max_expirations", 4)
	v.SetDefault("providers.alpaca.base_url", "https://data.alpaca.markets")
	v.SetDefault("providers.alpaca.api_key", "")
	v.SetDefault("providers.alpaca.api_secret", "")
	v.SetDefault("providers.alpaca.feed", "indicative")
	v.SetDefault("providers.alpaca.timeout", "15s")
	v.SetDefault("providers.kraken.base_url", "https://api.kraken.com")
	v.SetDefault("providers.kraken.timeout", "15s")
	v.SetDefault("providers.watchlist", []string{"SPY", "QQQ", "AAPL", "MSFT", "NVDA"})

	// Rate limiting
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 120)
	v.SetDefault("rate_limit.burst", 10)

	// Retry
	v.SetDefault("retry.enabled", true)
	v.SetDefault("retry.max_retries", 2)
	v.SetDefault("retry.base_delay", "200ms")
	v.SetDefault("retry.max_delay", "2s")

	// Circuit breaker
	v.SetDefault("circuit_breaker.failure_threshold", 5)
	v.SetDefault("circuit_breaker.success_threshold", 2)
	v.SetDefault("circuit_breaker.timeout", "30s")

	// Telemetry
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "market-gateway")
	v.SetDefault("telemetry.exporter", "stdout")
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.sample_rate", 1.0)

	// Engine
	v.SetDefault("engine.metrics_rf_annual", 0.0)
	v.SetDefault("engine.options_rf_annual", 0.03)
	v.SetDefault("engine.range", "3mo")
	v.SetDefault("engine.interval", "1d")
	v.SetDefault("engine.sharpe_weight", 0.4)
	v.SetDefault("engine.sortino_weight", 0.4)
	v.SetDefault("engine.calmar_weight", 0.2)
	v.SetDefault("engine.min_dte", 7)
	v.SetDefault("engine.max_dte", 60)
	v.SetDefault("engine.limit", 20)
	v.SetDefault("engine.concurrency", 0)
	v.SetDefault("engine.liquidity_threshold", 500)
	v.SetDefault("engine.max_acceptable_spread", 0.05)
	v.SetDefault("engine.momentum_floor", 0.0)
	v.SetDefault("engine.momentum_ceiling", 3.0)
	v.SetDefault("engine.liquidity_weight", 1.0)
	v.SetDefault("engine.spread_weight", 1.0)
	v.SetDefault("engine.momentum_weight", 1.0)
}

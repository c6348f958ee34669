package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so no config.yaml is picked up
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_WithDefaults(t *testing.T) {
	chdirTemp(t)

	config, err := Load()
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, 15*time.Second, config.Server.ReadTimeout)
	assert.False(t, config.Redis.Enabled)
	assert.Equal(t, "localhost", config.Redis.Host)
	assert.Equal(t, 6379, config.Redis.Port)
	assert.Equal(t, 5*time.Minute, config.Cache.PriceTTL)
	assert.Equal(t, "https://query1.finance.yahoo.com", config.Providers.Yahoo.BaseURL)
	assert.Equal(t, "https://api.kraken.com", config.Providers.Kraken.BaseURL)
	assert.False(t, config.Providers.Alpaca.Enabled())
	assert.Equal(t, 120, config.RateLimit.RequestsPerMinute)
	assert.Equal(t, 200*time.Millisecond, config.Retry.BaseDelay)
	assert.Equal(t, 5, config.CircuitBreaker.FailureThreshold)

	e := config.Engine
	assert.Equal(t, 0.0, e.MetricsRiskFreeRate)
	assert.Equal(t, 0.03, e.OptionsRiskFreeRate)
	assert.Equal(t, "3mo", e.Range)
	assert.Equal(t, "1d", e.Interval)
	assert.Equal(t, 0.4, e.SharpeWeight)
	assert.Equal(t, 0.4, e.SortinoWeight)
	assert.Equal(t, 0.2, e.CalmarWeight)
	assert.Equal(t, 7.0, e.MinDTE)
	assert.Equal(t, 60.0, e.MaxDTE)
	assert.Equal(t, 20, e.Limit)
	assert.Equal(t, 500.0, e.LiquidityThreshold)
	assert.Equal(t, 0.05, e.MaxAcceptableSpread)
	assert.Equal(t, 3.0, e.MomentumCeiling)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	chdirTemp(t)

	t.Setenv("ENVIRONMENT", "PRODUCTION")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "prod-redis.example.com")
	t.Setenv("REDIS_DB", "1")
	t.Setenv("ALPACA_API_KEY_ID", "key")
	t.Setenv("ALPACA_API_SECRET_KEY", "secret")
	t.Setenv("ENGINE_MIN_DTE", "14")
	t.Setenv("ENGINE_LIMIT", "5")
	t.Setenv("CACHE_PRICE_TTL", "30s")

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, "error", config.LogLevel)
	assert.Equal(t, 9000, config.Server.Port)
	assert.True(t, config.Redis.Enabled)
	assert.Equal(t, "prod-redis.example.com", config.Redis.Host)
	assert.Equal(t, 1, config.Redis.DB)
	assert.True(t, config.Providers.Alpaca.Enabled())
	assert.Equal(t, "key", config.Providers.Alpaca.APIKey)
	assert.Equal(t, 14.0, config.Engine.MinDTE)
	assert.Equal(t, 5, config.Engine.Limit)
	assert.Equal(t, 30*time.Second, config.Cache.PriceTTL)
}

func TestLoad_FromFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	yaml := []byte(`
server:
  port: 7070
engine:
  range: 1y
  interval: 1wk
  calmar_weight: 0.5
providers:
  yahoo:
    region: GB
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.yaml"), yaml, 0o600))

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, config.Server.Port)
	assert.Equal(t, "1y", config.Engine.Range)
	assert.Equal(t, "1wk", config.Engine.Interval)
	assert.Equal(t, 0.5, config.Engine.CalmarWeight)
	assert.Equal(t, 0.4, config.Engine.SharpeWeight)
	assert.Equal(t, "GB", config.Providers.Yahoo.Region)
}

func TestLoad_InvalidEngineValues(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ENGINE_MIN_DTE", "90")

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server: ServerConfig{Port: 8080},
			Engine: EngineConfig{
				SharpeWeight: 0.4, SortinoWeight: 0.4, CalmarWeight: 0.2,
				MinDTE: 7, MaxDTE: 60, Limit: 20,
				LiquidityThreshold: 500, MaxAcceptableSpread: 0.05,
				MomentumFloor: 0, MomentumCeiling: 3,
			},
			Telemetry: TelemetryConfig{Exporter: "none"},
		}
	}

	base := valid()
	assert.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"negative weight", func(c *Config) { c.Engine.SharpeWeight = -1 }},
		{"zero weights", func(c *Config) { c.Engine.SharpeWeight, c.Engine.SortinoWeight, c.Engine.CalmarWeight = 0, 0, 0 }},
		{"negative limit", func(c *Config) { c.Engine.Limit = -1 }},
		{"momentum range", func(c *Config) { c.Engine.MomentumCeiling = 0 }},
		{"rate limit", func(c *Config) { c.RateLimit = RateLimitConfig{Enabled: true} }},
		{"exporter", func(c *Config) { c.Telemetry.Exporter = "zipkin" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

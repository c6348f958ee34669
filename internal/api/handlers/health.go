package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/market-gateway/internal/cache"
	"github.com/irfndi/market-gateway/internal/services"
	"github.com/irfndi/market-gateway/internal/telemetry"
)

var startTime = time.Now()

// Pinger is anything whose reachability the health check reports
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// BreakerStats reports the per-provider circuit breakers
type BreakerStats interface {
	GetAllStats() map[string]services.CircuitBreakerStats
}

type HealthHandler struct {
	redis    Pinger
	breakers BreakerStats
	cache    *cache.RedisMarketCache
	sources  []string
}

// NewHealthHandler creates the health handler. A nil redis means caching is disabled.
func NewHealthHandler(redis Pinger, breakers BreakerStats, marketCache *cache.RedisMarketCache, sources []string) *HealthHandler {
	return &HealthHandler{redis: redis, breakers: breakers, cache: marketCache, sources: sources}
}

type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Services  map[string]string        `json:"services"`
	Providers map[string]ProviderState `json:"providers,omitempty"`
	Cache     *CacheState              `json:"cache,omitempty"`
	Sources   []string                 `json:"sources"`
}

type ProviderState struct {
	Circuit  string `json:"circuit"`
	Total    int64  `json:"total"`
	Failed   int64  `json:"failed"`
	Rejected int64  `json:"rejected"`
}

type CacheState struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// HealthCheck handles GET /health. An open breaker degrades the status but
// still answers 200; only an unreachable Redis answers 503.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   telemetry.ServiceVersion,
		Uptime:    time.Since(startTime).Round(time.Second).String(),
		Services:  map[string]string{},
		Sources:   h.sources,
	}
	statusCode := http.StatusOK

	if h.redis == nil {
		response.Services["redis"] = "disabled"
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.redis.HealthCheck(ctx); err != nil {
			response.Services["redis"] = "unhealthy: " + err.Error()
			response.Status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
		} else {
			response.Services["redis"] = "healthy"
			stats := h.cache.GetStats()
			response.Cache = &CacheState{Hits: stats.Hits, Misses: stats.Misses, HitRate: stats.HitRate()}
		}
	}

	if h.breakers != nil {
		response.Providers = make(map[string]ProviderState)
		for name, stats := range h.breakers.GetAllStats() {
			response.Providers[name] = ProviderState{
				Circuit:  stats.State,
				Total:    stats.TotalRequests,
				Failed:   stats.FailedRequests,
				Rejected: stats.RejectedRequests,
			}
			if stats.State == services.Open.String() && response.Status == "healthy" {
				response.Status = "degraded"
			}
		}
	}

	c.JSON(statusCode, response)
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/irfndi/market-gateway/internal/logging"
	"github.com/irfndi/market-gateway/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Cache namespaces
const (
	NamespacePrices   = "prices"
	NamespaceChains   = "chains"
	NamespaceTrending = "trending"
)

// MarketCacheEntry wraps a cached upstream payload with its timing metadata
type MarketCacheEntry struct {
	Payload   json.RawMessage `json:"payload"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// MarketCacheStats tracks cache performance metrics
type MarketCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

// TTLs per namespace
type TTLs struct {
	Prices   time.Duration
	Chains   time.Duration
	Trending time.Duration
}

// RedisMarketCache caches provider responses in Redis as JSON entries.
// A nil *RedisMarketCache is valid and always misses.
type RedisMarketCache struct {
	redis  *redis.Client
	ttls   TTLs
	stats  *MarketCacheStats
	prefix string
	logger logrus.FieldLogger
}

// NewRedisMarketCache creates a new Redis-based market data cache
func NewRedisMarketCache(redisClient *redis.Client, ttls TTLs, logger logrus.FieldLogger) *RedisMarketCache {
	return &RedisMarketCache{
		redis:  redisClient,
		ttls:   ttls,
		stats:  &MarketCacheStats{},
		prefix: "market_cache:",
		logger: logging.WithComponent(logger, "market_cache"),
	}
}

func (c *RedisMarketCache) key(namespace string, parts ...string) string {
	return c.prefix + namespace + ":" + strings.ToUpper(strings.Join(parts, ":"))
}

func (c *RedisMarketCache) ttlFor(namespace string) time.Duration {
	switch namespace {
	case NamespacePrices:
		return c.ttls.Prices
	case NamespaceChains:
		return c.ttls.Chains
	case NamespaceTrending:
		return c.ttls.Trending
	default:
		return time.Minute
	}
}

func (c *RedisMarketCache) miss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}

// get decodes the entry stored under key into dest
func (c *RedisMarketCache) get(ctx context.Context, cacheKey string, dest interface{}) bool {
	if c == nil {
		return false
	}
	start := time.Now()

	data, err := c.redis.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		c.miss()
		logging.LogCacheOperation(c.logger, "get", cacheKey, false, time.Since(start).Milliseconds())
		return false
	}
	if err != nil {
		c.logger.WithError(err).WithField("cache_key", cacheKey).Warn("Redis error reading cache entry")
		c.miss()
		return false
	}

	var entry MarketCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.WithError(err).WithField("cache_key", cacheKey).Warn("Error deserializing cache entry")
		c.miss()
		return false
	}
	if err := json.Unmarshal(entry.Payload, dest); err != nil {
		c.logger.WithError(err).WithField("cache_key", cacheKey).Warn("Error decoding cached payload")
		c.miss()
		return false
	}

	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
	logging.LogCacheOperation(c.logger, "get", cacheKey, true, time.Since(start).Milliseconds())
	return true
}

// set stores value under key for the namespace TTL
func (c *RedisMarketCache) set(ctx context.Context, namespace, cacheKey string, value interface{}) {
	if c == nil {
		return
	}
	ttl := c.ttlFor(namespace)
	if ttl <= 0 {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).WithField("cache_key", cacheKey).Warn("Error serializing cache payload")
		return
	}
	now := time.Now()
	data, err := json.Marshal(MarketCacheEntry{Payload: payload, CachedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		c.logger.WithError(err).WithField("cache_key", cacheKey).Warn("Error serializing cache entry")
		return
	}

	if err := c.redis.Set(ctx, cacheKey, data, ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("cache_key", cacheKey).Warn("Redis error writing cache entry")
		return
	}

	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()
}

// GetPriceHistory returns a cached price history
func (c *RedisMarketCache) GetPriceHistory(ctx context.Context, source, symbol, rangeLabel, interval string) (*models.PriceHistory, bool) {
	if c == nil {
		return nil, false
	}
	var h models.PriceHistory
	if !c.get(ctx, c.key(NamespacePrices, source, symbol, rangeLabel, interval), &h) {
		return nil, false
	}
	return &h, true
}

// SetPriceHistory caches a price history under its own source, symbol, range and interval
func (c *RedisMarketCache) SetPriceHistory(ctx context.Context, h *models.PriceHistory) {
	if c == nil || h == nil {
		return
	}
	c.set(ctx, NamespacePrices, c.key(NamespacePrices, h.Source, h.Symbol, h.Range, h.Interval), h)
}

// GetOptionChain returns a cached option chain
func (c *RedisMarketCache) GetOptionChain(ctx context.Context, source, underlying string) (*models.OptionChain, bool) {
	if c == nil {
		return nil, false
	}
	var chain models.OptionChain
	if !c.get(ctx, c.key(NamespaceChains, source, underlying), &chain) {
		return nil, false
	}
	return &chain, true
}

// SetOptionChain caches an option chain
func (c *RedisMarketCache) SetOptionChain(ctx context.Context, chain *models.OptionChain) {
	if c == nil || chain == nil {
		return
	}
	c.set(ctx, NamespaceChains, c.key(NamespaceChains, chain.Source, chain.UnderlyingSymbol), chain)
}

// GetTrending returns a cached trending ticker list
func (c *RedisMarketCache) GetTrending(ctx context.Context, source string) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	var symbols []string
	if !c.get(ctx, c.key(NamespaceTrending, source), &symbols) {
		return nil, false
	}
	return symbols, true
}

// SetTrending caches a trending ticker list
func (c *RedisMarketCache) SetTrending(ctx context.Context, source string, symbols []string) {
	if c == nil {
		return
	}
	c.set(ctx, NamespaceTrending, c.key(NamespaceTrending, source), symbols)
}

// GetStats returns current cache statistics
func (c *RedisMarketCache) GetStats() MarketCacheStats {
	if c == nil {
		return MarketCacheStats{}
	}
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return MarketCacheStats{
		Hits:   c.stats.Hits,
		Misses: c.stats.Misses,
		Sets:   c.stats.Sets,
	}
}

// HitRate is hits over lookups as a percentage
func (s *MarketCacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Clear removes all cached entries
func (c *RedisMarketCache) Clear(ctx context.Context) error {
	if c == nil {
		return nil
	}
	pattern := c.prefix + "*"

	// Get all keys matching the pattern using SCAN for better performance
	var keys []string
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("error scanning cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error clearing cache: %w", err)
	}

	c.logger.WithField("keys", len(keys)).Info("Cleared market cache entries")
	return nil
}

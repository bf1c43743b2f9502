package dlp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hieuminhle/cdc-weltwissen/internal/config"
	"github.com/hieuminhle/cdc-weltwissen/internal/logger"
	"go.uber.org/zap"
)

// ResultCache is a Redis-backed cache of inspection results, keyed by a
// digest of the inspected text. Repeated prompts (health probes, retried
// submissions) skip the detection backend entirely.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *logger.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache connects to Redis and verifies the connection.
func NewResultCache(cfg config.CacheConfig, log *logger.Logger) (*ResultCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.MaxConnections
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Inspection cache initialized",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Duration("default_ttl", cfg.DefaultTTL),
	)

	return &ResultCache{
		client: client,
		ttl:    cfg.DefaultTTL,
		prefix: cfg.KeyPrefix,
		logger: log,
	}, nil
}

// Get returns a cached result for the text, if present. Cache failures are
// treated as misses; the detection backend is the source of truth.
func (c *ResultCache) Get(ctx context.Context, text, jurisdiction string) (InspectResult, bool) {
	data, err := c.client.Get(ctx, c.key(text, jurisdiction)).Result()
	if err == redis.Nil {
		c.misses.Add(1)
		return InspectResult{}, false
	} else if err != nil {
		c.misses.Add(1)
		c.logger.Error("Cache lookup failed", zap.Error(err))
		return InspectResult{}, false
	}

	var result InspectResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.misses.Add(1)
		c.logger.Error("Failed to decode cached result", zap.Error(err))
		return InspectResult{}, false
	}

	c.hits.Add(1)
	return result, true
}

// Stats returns the hit and miss counts accumulated since startup.
func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Set stores an inspection result. Failures are logged and ignored.
func (c *ResultCache) Set(ctx context.Context, text, jurisdiction string, result InspectResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("Failed to encode result for cache", zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, c.key(text, jurisdiction), data, c.ttl).Err(); err != nil {
		c.logger.Error("Cache store failed", zap.Error(err))
	}
}

// Close logs the final cache statistics and releases the Redis connection.
func (c *ResultCache) Close() error {
	hits, misses := c.Stats()
	c.logger.Info("Inspection cache closed",
		zap.Int64("hits", hits),
		zap.Int64("misses", misses),
	)
	return c.client.Close()
}

func (c *ResultCache) key(text, jurisdiction string) string {
	sum := sha256.Sum256([]byte(jurisdiction + "\x00" + text))
	return c.prefix + hex.EncodeToString(sum[:])
}

// maskRedisURL hides credentials in a Redis URL for logging.
func maskRedisURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "redis://***"
	}
	if parsed.User != nil {
		parsed.User = url.User("***")
	}
	return strings.TrimSuffix(parsed.String(), "/")
}

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/ner"
)

// EntityCache memoizes a Recognizer in Redis, keyed by a hash of the text.
// It implements ner.Recognizer itself so it can be injected transparently.
type EntityCache struct {
	client      *redis.Client
	inner       ner.Recognizer
	config      *Config
	fingerprint string
	logger      *zap.Logger
	stats       cacheStats
}

// cacheStats tracks cache performance metrics
type cacheStats struct {
	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

var _ ner.Recognizer = (*EntityCache)(nil)

// NewEntityCache connects to Redis and wraps inner
func NewEntityCache(config *Config, inner ner.Recognizer, logger *zap.Logger) (*EntityCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	cache := newEntityCache(redis.NewClient(opts), config, inner, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.client.Ping(ctx).Err(); err != nil {
		cache.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Entity cache initialized successfully",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.String("fingerprint", cache.fingerprint),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("default_ttl", config.DefaultTTL))

	return cache, nil
}

func newEntityCache(client *redis.Client, config *Config, inner ner.Recognizer, logger *zap.Logger) *EntityCache {
	fingerprint := config.Fingerprint
	if fingerprint == "" {
		fingerprint = ner.Fingerprint(inner)
	}
	return &EntityCache{
		client:      client,
		inner:       inner,
		config:      config,
		fingerprint: fingerprint,
		logger:      logger,
	}
}

// Recognize returns cached entities for text, falling back to the wrapped
// recognizer on a miss. Redis failures degrade to a miss; recognizer
// failures are returned unchanged.
func (ec *EntityCache) Recognize(ctx context.Context, text string) ([]ner.Entity, error) {
	key := ec.generateKey(text)

	if entities, ok := ec.lookup(ctx, key); ok {
		return entities, nil
	}

	entities, err := ec.inner.Recognize(ctx, text)
	if err != nil {
		return nil, err
	}

	ec.store(ctx, key, entities)
	return entities, nil
}

// lookup fetches and decodes a cache entry
func (ec *EntityCache) lookup(ctx context.Context, key string) ([]ner.Entity, bool) {
	data, err := ec.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		ec.stats.misses.Add(1)
		ec.logger.Debug("Cache miss", zap.String("key", key))
		return nil, false
	} else if err != nil {
		ec.stats.misses.Add(1)
		ec.stats.errors.Add(1)
		ec.logger.Warn("Cache lookup failed", zap.Error(err))
		return nil, false
	}

	var cached CachedEntities
	if err := json.Unmarshal(data, &cached); err != nil {
		ec.stats.misses.Add(1)
		ec.logger.Error("Failed to unmarshal cached entities", zap.Error(err))
		// Delete corrupted cache entry
		ec.client.Del(ctx, key)
		return nil, false
	}

	ec.stats.hits.Add(1)
	ec.logger.Debug("Cache hit", zap.String("key", key), zap.Int("entities", len(cached.Entities)))
	return cached.Entities, true
}

// store writes a cache entry; failures are logged and otherwise ignored
func (ec *EntityCache) store(ctx context.Context, key string, entities []ner.Entity) {
	data, err := json.Marshal(CachedEntities{Entities: entities, CachedAt: time.Now()})
	if err != nil {
		ec.logger.Error("Failed to marshal entities for caching", zap.Error(err))
		return
	}

	if err := ec.client.Set(ctx, key, data, ec.config.DefaultTTL).Err(); err != nil {
		ec.stats.errors.Add(1)
		ec.logger.Warn("Failed to cache entities", zap.Error(err))
	}
}

// GetStats returns cache performance statistics
func (ec *EntityCache) GetStats(ctx context.Context) *CacheStats {
	stats := &CacheStats{
		Hits:   ec.stats.hits.Load(),
		Misses: ec.stats.misses.Load(),
		Errors: ec.stats.errors.Load(),
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	if keys, err := ec.client.DBSize(ctx).Result(); err == nil {
		stats.TotalKeys = keys
	}

	return stats
}

// Clear removes all cached entries under the key prefix
func (ec *EntityCache) Clear(ctx context.Context) error {
	iter := ec.client.Scan(ctx, 0, ec.config.KeyPrefix+":ner:*", 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}

		if err := ec.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	ec.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (ec *EntityCache) Close() error {
	if ec.client != nil {
		return ec.client.Close()
	}
	return nil
}

// generateKey creates a cache key from the recognizer fingerprint and the
// text hash
func (ec *EntityCache) generateKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:ner:%s:%s", ec.config.KeyPrefix, ec.fingerprint, hex.EncodeToString(hash[:])[:16])
}

// maskRedisURL masks the password in a Redis URL for logging
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userInfo := url[:at]
	colon := strings.LastIndex(userInfo, ":")
	scheme := strings.Index(userInfo, "://")
	if colon < 0 || colon <= scheme+2 {
		return url
	}
	return userInfo[:colon+1] + "***" + url[at:]
}

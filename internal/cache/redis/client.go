package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/newslens/backend/internal/metrics"
	"github.com/newslens/backend/pkg/logger"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Set stores a JSON-encoded value under the given key with a TTL.
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key: %w", err)
	}

	logger.Debug("Value cached", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

// Get loads a JSON-encoded value into dest. Returns false on a miss.
func (c *Client) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues("redis").Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cache key: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	metrics.CacheHits.WithLabelValues("redis").Inc()
	logger.Debug("Cache hit", zap.String("key", key))
	return true, nil
}

// Invalidate removes cached entries matching the given pattern.
func (c *Client) Invalidate(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}

	logger.Debug("Cache invalidated", zap.String("pattern", pattern), zap.Int("keys", len(keys)))
	return nil
}

// llmResponseTTL bounds how long raw model replies are reusable. The
// prompt embeds article text only, so replies stay valid until the
// model or prompt changes; a day keeps repeat analyses of hot articles
// cheap without letting stale schema versions linger.
const llmResponseTTL = 24 * time.Hour

// GetResponse returns a cached raw model reply for a prompt hash.
func (c *Client) GetResponse(ctx context.Context, promptHash string) (string, bool) {
	raw, err := c.client.Get(ctx, "llm:"+promptHash).Result()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues("llm").Inc()
		return "", false
	}
	if err != nil {
		logger.Warn("LLM cache read failed", zap.Error(err))
		return "", false
	}
	metrics.CacheHits.WithLabelValues("llm").Inc()
	return raw, true
}

// SetResponse stores a raw model reply under a prompt hash. Best
// effort: a write failure only costs a repeat model call later.
func (c *Client) SetResponse(ctx context.Context, promptHash, raw string) {
	if err := c.client.Set(ctx, "llm:"+promptHash, raw, llmResponseTTL).Err(); err != nil {
		logger.Warn("LLM cache write failed", zap.Error(err))
	}
}

// TrendingKey builds the cache key for trending topic aggregations.
func TrendingKey(days int) string {
	return fmt.Sprintf("trending:%d", days)
}

// UserStatsKey builds the cache key for per-user analysis statistics.
func UserStatsKey(userID string) string {
	return fmt.Sprintf("stats:user:%s", userID)
}

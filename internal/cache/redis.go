// Package cache provides the Redis-backed cache used for coordinate transforms.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matter-platform/search-core/internal/config"
)

// Client wraps the go-redis client with health checking.
type Client struct {
	*redis.Client
}

// New creates a Redis client from cfg and pings it. It returns nil when no URL
// is configured.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health checks the connection.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// TransformCache stores transform results under a key prefix with a fixed TTL.
// Redis errors are logged and reported as misses.
type TransformCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewTransformCache creates a TransformCache. A zero ttl keeps entries forever.
func NewTransformCache(client redis.Cmdable, ttl time.Duration) *TransformCache {
	return &TransformCache{client: client, prefix: "search-core:", ttl: ttl}
}

// Get returns the cached value for key.
func (c *TransformCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("transform cache read failed", "key", key, "error", err)
		return nil, false
	}
	return val, true
}

// Set stores value under key.
func (c *TransformCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		slog.Warn("transform cache write failed", "key", key, "error", err)
	}
}

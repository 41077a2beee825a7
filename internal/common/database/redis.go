// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"notification-workers/internal/common/config"
	"notification-workers/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPoolSize = 10

// RedisClient holds the connection pool behind the template cache.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis builds the pool without dialing. Cache reads are on the hot path
// of every recipient, so read and write timeouts stay short.
func NewRedis(cfg config.RedisConfig) *RedisClient {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultRedisPoolSize
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolSize:     poolSize,
		MinIdleConns: 2,
	})

	return &RedisClient{Client: rdb}
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Probe pings once and logs the outcome. A cache that is down at startup
// only costs latency, so the result is advisory.
func (c *RedisClient) Probe(ctx context.Context, log logger.Logger) bool {
	opts := c.Client.Options()
	if err := c.Ping(ctx); err != nil {
		log.Warn("Redis unavailable, template cache will miss", map[string]interface{}{
			"address": opts.Addr,
			"error":   err.Error(),
		})
		return false
	}
	log.Info("Redis template cache connected", map[string]interface{}{
		"address":  opts.Addr,
		"poolSize": opts.PoolSize,
	})
	return true
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

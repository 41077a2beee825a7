package templates

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"notification-workers/internal/common/logger"
	"notification-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "notification:template:"

func CacheKey(application, name string) string {
	return cacheKeyPrefix + application + ":" + name
}

// CachedResolver fronts another Resolver with Redis. Redis failures are
// logged and fall through to the wrapped resolver; misses are not cached.
type CachedResolver struct {
	next   Resolver
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedResolver(next Resolver, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedResolver {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &CachedResolver{next: next, redis: rdb, ttl: ttl, logger: log}
}

func (c *CachedResolver) Resolve(ctx context.Context, application, name string) (*models.NotificationTemplate, error) {
	key := CacheKey(application, name)

	val, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var tpl models.NotificationTemplate
		if jsonErr := json.Unmarshal([]byte(val), &tpl); jsonErr == nil {
			return &tpl, nil
		}
		c.logger.Warn("Discarding unreadable cached template", map[string]interface{}{
			"key": key,
		})
	case !stderrors.Is(err, redis.Nil):
		c.logger.Warn("Template cache read failed", map[string]interface{}{
			"key":   key,
			"error": err,
		})
	}

	tpl, err := c.next.Resolve(ctx, application, name)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(tpl)
	if err == nil {
		err = c.redis.Set(ctx, key, data, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("Template cache write failed", map[string]interface{}{
			"key":   key,
			"error": err,
		})
	}
	return tpl, nil
}

func (c *CachedResolver) Evict(ctx context.Context, application, name string) error {
	return c.redis.Del(ctx, CacheKey(application, name)).Err()
}

package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubResolver(tpl *models.NotificationTemplate, err error, calls *int32) Resolver {
	return ResolverFunc(func(ctx context.Context, application, name string) (*models.NotificationTemplate, error) {
		atomic.AddInt32(calls, 1)
		if err != nil {
			return nil, err
		}
		return tpl, nil
	})
}

func welcomeTemplate() *models.NotificationTemplate {
	return &models.NotificationTemplate{
		ID:          "tpl-1",
		Application: "app1",
		Name:        "welcome",
		Content:     "<p>Hi ${firstName}</p>",
		UpdatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestCachedResolver_MissThenStore(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	tpl := welcomeTemplate()
	key := CacheKey("app1", "welcome")
	data, _ := json.Marshal(tpl)

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, data, 10*time.Minute).SetVal("OK")

	var calls int32
	resolver := NewCachedResolver(stubResolver(tpl, nil, &calls), rdb, 10*time.Minute, logger.NewTestLogger(t))

	got, err := resolver.Resolve(context.Background(), "app1", "welcome")
	require.NoError(t, err)
	assert.Equal(t, tpl, got)
	assert.Equal(t, int32(1), calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedResolver_Hit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	tpl := welcomeTemplate()
	data, _ := json.Marshal(tpl)

	mock.ExpectGet(CacheKey("app1", "welcome")).SetVal(string(data))

	var calls int32
	resolver := NewCachedResolver(stubResolver(nil, fmt.Errorf("should not be called"), &calls), rdb, time.Minute, nil)

	got, err := resolver.Resolve(context.Background(), "app1", "welcome")
	require.NoError(t, err)
	assert.Equal(t, tpl.Content, got.Content)
	assert.True(t, tpl.UpdatedAt.Equal(got.UpdatedAt))
	assert.Zero(t, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedResolver_NotFoundIsNotCached(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(CacheKey("app1", "absent")).RedisNil()

	var calls int32
	resolver := NewCachedResolver(stubResolver(nil, errors.NewTemplateNotFoundError("app1", "absent"), &calls), rdb, time.Minute, nil)

	_, err := resolver.Resolve(context.Background(), "app1", "absent")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeTemplateNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedResolver_RedisDownFallsThrough(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	tpl := welcomeTemplate()
	key := CacheKey("app1", "welcome")
	data, _ := json.Marshal(tpl)

	mock.ExpectGet(key).SetErr(fmt.Errorf("connection refused"))
	mock.ExpectSet(key, data, time.Minute).SetErr(fmt.Errorf("connection refused"))

	var calls int32
	resolver := NewCachedResolver(stubResolver(tpl, nil, &calls), rdb, time.Minute, nil)

	got, err := resolver.Resolve(context.Background(), "app1", "welcome")
	require.NoError(t, err)
	assert.Equal(t, tpl, got)
	assert.Equal(t, int32(1), calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedResolver_CorruptEntryIsReplaced(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	key := CacheKey("app1", "welcome")
	require.NoError(t, mr.Set(key, "{not json"))

	var calls int32
	resolver := NewCachedResolver(stubResolver(welcomeTemplate(), nil, &calls), rdb, time.Minute, nil)

	got, err := resolver.Resolve(context.Background(), "app1", "welcome")
	require.NoError(t, err)
	assert.Equal(t, "tpl-1", got.ID)
	assert.Equal(t, int32(1), calls)

	stored, err := mr.Get(key)
	require.NoError(t, err)
	assert.Contains(t, stored, `"content":"<p>Hi ${firstName}</p>"`)
}

func TestCachedResolver_TTLAndEvict(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	var calls int32
	resolver := NewCachedResolver(stubResolver(welcomeTemplate(), nil, &calls), rdb, 5*time.Minute, nil)
	ctx := context.Background()
	key := CacheKey("app1", "welcome")

	_, err := resolver.Resolve(ctx, "app1", "welcome")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, mr.TTL(key))

	_, err = resolver.Resolve(ctx, "app1", "welcome")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls)

	mr.FastForward(6 * time.Minute)
	_, err = resolver.Resolve(ctx, "app1", "welcome")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls)

	require.NoError(t, resolver.Evict(ctx, "app1", "welcome"))
	assert.False(t, mr.Exists(key))
}

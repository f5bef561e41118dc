package collector

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const liveViewsKey = "viewtrace:live_views"

// LiveCache tracks which views have beaconed recently so the collector
// can expose a concurrent-viewers gauge.
type LiveCache interface {
	Touch(ctx context.Context, viewID string, at time.Time) error
	Count(ctx context.Context, now time.Time) (int64, error)
	HealthCheck() error
}

// NewLiveCache returns a Redis-backed cache when a URI is configured
// and a process-local no-op otherwise.
func NewLiveCache(redisURI string, window time.Duration) (LiveCache, error) {
	if redisURI == "" {
		return NoopLiveCache{}, nil
	}
	return NewRedisLiveCache(redisURI, window)
}

type NoopLiveCache struct{}

func (NoopLiveCache) Touch(ctx context.Context, viewID string, at time.Time) error { return nil }

func (NoopLiveCache) Count(ctx context.Context, now time.Time) (int64, error) { return 0, nil }

func (NoopLiveCache) HealthCheck() error { return nil }

// RedisLiveCache keeps a sorted set of view ids scored by the unix
// millisecond of their last beacon. Counting trims entries older than
// the window first, so the set stays bounded without a reaper.
type RedisLiveCache struct {
	client *redis.Client
	window time.Duration
}

func NewRedisLiveCache(redisURI string, window time.Duration) (*RedisLiveCache, error) {
	log := log.WithField("prefix", "NewRedisLiveCache")

	opts, err := redis.ParseURL(redisURI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URI: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	log.Infof("live-viewers cache connected, window %s", window)

	return &RedisLiveCache{client: client, window: window}, nil
}

func (c *RedisLiveCache) Touch(ctx context.Context, viewID string, at time.Time) error {
	return c.client.ZAdd(ctx, liveViewsKey, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: viewID,
	}).Err()
}

func (c *RedisLiveCache) Count(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-c.window).UnixMilli()
	if err := c.client.ZRemRangeByScore(ctx, liveViewsKey, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return 0, err
	}
	return c.client.ZCard(ctx, liveViewsKey).Result()
}

func (c *RedisLiveCache) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

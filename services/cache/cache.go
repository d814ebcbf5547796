// Package cachesvc implements core.Cache on redis, with a no-op fallback when redis is not configured.
package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/sekolah-app/sekolah/core"
)

const keyPrefix = "sekolah:"

type redisCache struct {
	rdb *redis.Client
}

var _ core.Cache = (*redisCache)(nil)

// New connects to redis when REDIS_ADDR is set, otherwise it returns a cache that never hits.
func New(ctx context.Context, conf *core.Config, logger core.Logger) (core.Cache, func() error) {
	if conf.Redis.Addr == "" {
		logger.Info("REDIS_ADDR not set, caching disabled")
		return Noop{}, func() error { return nil }
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("connecting to redis, caching disabled", err)
		_ = rdb.Close()
		return Noop{}, func() error { return nil }
	}
	return NewRedisCache(rdb), rdb.Close
}

func NewRedisCache(rdb *redis.Client) core.Cache {
	return &redisCache{rdb: rdb}
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, errors.Wrap(err, "redis get")
	}
	if err = json.Unmarshal(data, dest); err != nil {
		return false, errors.Wrap(err, "decoding cached value")
	}
	return true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encoding cached value")
	}
	return errors.Wrap(c.rdb.Set(ctx, keyPrefix+key, data, ttl).Err(), "redis set")
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		prefixed = append(prefixed, keyPrefix+k)
	}
	return errors.Wrap(c.rdb.Del(ctx, prefixed...).Err(), "redis del")
}

// Noop never stores anything.
type Noop struct{}

var _ core.Cache = Noop{}

func (Noop) Get(context.Context, string, interface{}) (bool, error)        { return false, nil }
func (Noop) Set(context.Context, string, interface{}, time.Duration) error { return nil }
func (Noop) Delete(context.Context, ...string) error                       { return nil }

package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisDeduper holds dedup claims as expiring Redis keys.
type RedisDeduper struct {
	rdb *redis.Client
}

func NewRedisDeduper(rdb *redis.Client) *RedisDeduper {
	return &RedisDeduper{rdb: rdb}
}

func (d *RedisDeduper) Claim(ctx context.Context, key string, window time.Duration) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, key, 1, window).Result()
	if err != nil {
		return false, errors.Wrapf(err, "claim %s", key)
	}
	return ok, nil
}

func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	return errors.Wrapf(d.rdb.Del(ctx, key).Err(), "release %s", key)
}

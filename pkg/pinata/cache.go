package pinata

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores content by CID. Pinned content is immutable so entries never
// need invalidation, only expiry.
type Cache interface {
	Get(ctx context.Context, cid string) ([]byte, bool, error)
	Set(ctx context.Context, cid string, data []byte) error
}

type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "ipfs:"}
}

func (c *RedisCache) Get(ctx context.Context, cid string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, c.prefix+cid).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, cid string, data []byte) error {
	return c.rdb.Set(ctx, c.prefix+cid, data, c.ttl).Err()
}

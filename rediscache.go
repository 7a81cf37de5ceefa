package zenstore

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache backs the Cache contract with a shared Redis instance so cached
// reads survive process restarts and are visible across replicas.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(address string, password string, db int, defaultExpiration time.Duration) *RedisCache {
	opts := &redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}

	if opts.Addr != "" && opts.Addr != "localhost:6379" {
		opts.TLSConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return NewRedisCacheFromClient(redis.NewClient(opts), defaultExpiration)
}

func NewRedisCacheFromClient(client *redis.Client, defaultExpiration time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: defaultExpiration}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return value, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, duration time.Duration) {
	if duration <= 0 {
		duration = c.ttl
	}
	_ = c.client.Set(ctx, key, value, duration).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if !strings.HasSuffix(key, "*") {
		_ = c.client.Del(ctx, key).Err()
		return
	}

	iter := c.client.Scan(ctx, 0, key, 0).Iterator()
	for iter.Next(ctx) {
		_ = c.client.Del(ctx, iter.Val()).Err()
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"unreplied/internal/domain"
	"unreplied/pkg/log"
)

const redisOpTimeout = 2 * time.Second

// RedisCache is a listing cache shared between instances. Redis failures
// degrade to cache misses.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache creates a cache over client with the given entry TTL.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get retrieves a page from redis.
func (c *RedisCache) Get(key string) (*domain.CastPage, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, NormalizedKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.GlobalWarn("redis get failed", "key", key, "error", err)
		}
		return nil, false
	}

	var page domain.CastPage
	if err := json.Unmarshal(data, &page); err != nil {
		log.GlobalWarn("redis entry is corrupt", "key", key, "error", err)
		return nil, false
	}
	return &page, true
}

// Set stores a page in redis with the configured TTL.
func (c *RedisCache) Set(key string, page *domain.CastPage) {
	data, err := json.Marshal(page)
	if err != nil {
		log.GlobalWarn("redis encode failed", "key", key, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := c.client.Set(ctx, NormalizedKey(key), data, c.ttl).Err(); err != nil {
		log.GlobalWarn("redis set failed", "key", key, "error", err)
	}
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

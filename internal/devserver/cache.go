package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	feedCacheKey = "twits:feed"
	feedCacheTTL = 30 * time.Second
)

// Cache is a redis-backed read-through cache for the feed. A nil client is
// valid: every operation degrades to a no-op and reads fall through to the
// database.
type Cache struct {
	client *redis.Client
}

// NewCache wraps the given client; pass nil to run without a cache.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Available reports whether a redis client is wired.
func (c *Cache) Available() bool {
	return c.client != nil
}

// Ping checks the connection.
func (c *Cache) Ping(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the connection.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// GetJSON reads key into dest. Returns (true, nil) on a hit, (false, nil)
// on a miss or when no cache is wired.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	s, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, b, ttl).Err()
}

// CacheAside tries the cache first; on miss it calls fetch, which must write
// into dest, then stores the result best-effort.
func (c *Cache) CacheAside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := c.GetJSON(ctx, key, dest)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	if err := fetch(); err != nil {
		return err
	}
	_ = c.SetJSON(ctx, key, dest, ttl)
	return nil
}

// Invalidate drops the given keys. Called after every write that changes
// the feed.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c.client == nil || len(keys) == 0 {
		return
	}
	_ = c.client.Del(ctx, keys...).Err()
}

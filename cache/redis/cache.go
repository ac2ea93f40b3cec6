// Package redis implements the cache.Cache contract on a Redis backend.
// Every operation swallows backend errors: a failed read is a miss, a failed
// write is a no-op. The durable store remains the source of truth.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.pilab.hu/toolbridge/cache"
)

var _ cache.Cache = (*Cache)(nil)

const scanBatchSize = 100

// Cache implements cache.Cache using go-redis.
type Cache struct {
	client *redis.Client
	prefix string

	hits   func()
	misses func()
}

// New creates a Redis-backed cache. prefix namespaces all keys and may be
// empty.
func New(client *redis.Client, prefix string) *Cache {
	c := &Cache{client: client, prefix: prefix}
	c.hits = func() {}
	c.misses = func() {}
	return c
}

// WithCounters installs hit/miss callbacks for observability.
func (c *Cache) WithCounters(hit, miss func()) *Cache {
	if hit != nil {
		c.hits = hit
	}
	if miss != nil {
		c.misses = miss
	}
	return c
}

func (c *Cache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("cache get failed, treating as miss")
		}
		c.misses()
		return "", false
	}
	c.hits()
	return val, true
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache set failed, skipping")
	}
}

func (c *Cache) Del(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache del failed, skipping")
	}
}

// DelPattern scans for keys matching the glob pattern and deletes them in
// batches.
func (c *Cache) DelPattern(ctx context.Context, pattern string) int {
	var (
		deleted int
		cursor  uint64
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.key(pattern), scanBatchSize).Result()
		if err != nil {
			log.Warn().Err(err).Str("pattern", pattern).Msg("cache scan failed, aborting pattern delete")
			return deleted
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				log.Warn().Err(err).Str("pattern", pattern).Msg("cache batch delete failed")
			} else {
				deleted += int(n)
			}
		}
		cursor = next
		if cursor == 0 {
			return deleted
		}
	}
}

func (c *Cache) MGet(ctx context.Context, keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.key(k)
	}

	vals, err := c.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		log.Warn().Err(err).Msg("cache mget failed, treating all as misses")
		for range keys {
			c.misses()
		}
		return out
	}

	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = s
			c.hits()
		} else {
			c.misses()
		}
	}
	return out
}

func (c *Cache) MSet(ctx context.Context, entries map[string]string, ttl time.Duration) {
	if len(entries) == 0 {
		return
	}
	pipe := c.client.Pipeline()
	for k, v := range entries {
		pipe.Set(ctx, c.key(k), v, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Msg("cache mset failed, skipping")
	}
}

// Available pings the backend with a short deadline.
func (c *Cache) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err() == nil
}

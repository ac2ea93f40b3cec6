package cache

import (
	"context"
	"path"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Memory implements Cache using ttlcache. It backs single-node deployments
// and the test suite.
type Memory struct {
	counters
	cache *ttlcache.Cache[string, string]
}

// NewMemory creates an in-memory cache with automatic expiry cleanup.
func NewMemory() *Memory {
	c := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go c.Start()

	return &Memory{cache: c}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	item := m.cache.Get(key)
	if item == nil {
		m.miss()
		return "", false
	}
	m.hit()
	return item.Value(), true
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	m.cache.Set(key, value, ttl)
}

func (m *Memory) Del(_ context.Context, key string) {
	m.cache.Delete(key)
}

func (m *Memory) DelPattern(_ context.Context, pattern string) int {
	var matched []string
	m.cache.Range(func(item *ttlcache.Item[string, string]) bool {
		if ok, err := path.Match(pattern, item.Key()); err == nil && ok {
			matched = append(matched, item.Key())
		}
		return true
	})
	for _, key := range matched {
		m.cache.Delete(key)
	}
	return len(matched)
}

func (m *Memory) MGet(ctx context.Context, keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if v, ok := m.Get(ctx, key); ok {
			out[key] = v
		}
	}
	return out
}

func (m *Memory) MSet(ctx context.Context, entries map[string]string, ttl time.Duration) {
	for k, v := range entries {
		m.Set(ctx, k, v, ttl)
	}
}

func (m *Memory) Available() bool { return true }

// Close stops the expiry cleanup goroutine.
func (m *Memory) Close() {
	m.cache.Stop()
}

var _ Cache = (*Memory)(nil)

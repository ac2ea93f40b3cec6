// Package cache provides the key/value cache tier used for auth configs,
// OAuth state tokens and short-lived access tokens.
//
// The cache is a performance optimization, never a correctness dependency:
// every implementation is non-throwing. Backend errors are logged and turn
// into a miss (Get) or a no-op (Set/Del), so callers always fall back to the
// durable store. Available lets callers short-circuit when the backend is
// known to be down.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Cache is the best-effort key/value contract.
type Cache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) (string, bool)
	// Set stores value under key for ttl. A non-positive ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration)
	// Del removes key.
	Del(ctx context.Context, key string)
	// DelPattern removes all keys matching the glob pattern and returns the
	// number removed.
	DelPattern(ctx context.Context, pattern string) int
	// MGet returns the present subset of keys.
	MGet(ctx context.Context, keys ...string) map[string]string
	// MSet stores all entries with a shared ttl.
	MSet(ctx context.Context, entries map[string]string, ttl time.Duration)
	// Available reports whether the backend is reachable.
	Available() bool
}

// Key formats are part of the external contract; other deployments and the
// test suite rely on them.

// OrgAuthKey is the cache key for an org-level tool auth config.
func OrgAuthKey(orgID, toolID string) string {
	return fmt.Sprintf("auth:org:%s:tool:%s", orgID, toolID)
}

// UserCredKey is the cache key for a user credential.
func UserCredKey(orgID, userID, toolID string) string {
	return fmt.Sprintf("auth:user:%s:%s:tool:%s", orgID, userID, toolID)
}

// StateKey is the cache key for a transient OAuth authorization state.
func StateKey(state string) string {
	return fmt.Sprintf("oauth:state:%s", state)
}

// TokenKey is the cache key for a freshly refreshed access token.
func TokenKey(credentialID string) string {
	return fmt.Sprintf("token:%s", credentialID)
}

// Stats is a snapshot of the hit/miss counters.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// counters tracks hits and misses with atomic increments; embedded by the
// cache implementations.
type counters struct {
	hits   atomic.Uint64
	misses atomic.Uint64
}

func (c *counters) hit()  { c.hits.Add(1) }
func (c *counters) miss() { c.misses.Add(1) }

// Stats returns the current hit/miss counts.
func (c *counters) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Noop is a permanently unavailable cache. Every read misses and every write
// is dropped; it stands in when no cache backend is configured.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, bool)          { return "", false }
func (Noop) Set(context.Context, string, string, time.Duration)  {}
func (Noop) Del(context.Context, string)                         {}
func (Noop) DelPattern(context.Context, string) int              { return 0 }
func (Noop) MGet(context.Context, ...string) map[string]string   { return map[string]string{} }
func (Noop) MSet(context.Context, map[string]string, time.Duration) {}
func (Noop) Available() bool                                     { return false }

var _ Cache = Noop{}

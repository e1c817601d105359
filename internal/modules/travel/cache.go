// README: Travel-time memoization keyed by (origin, destination, provider mode) with lazy TTL expiry.
package travel

import (
	"context"
	"log"
	"time"
)

// DefaultCacheTTL is how long a fetched duration stays usable.
const DefaultCacheTTL = 7 * 24 * time.Hour

type LegKey struct {
	Origin      string
	Destination string
	Mode        ProviderMode
}

type Entry struct {
	Minutes  int
	StoredAt time.Time
}

// CacheStore is the persistence behind MatrixCache. Get reports found=false
// on a miss. Put overwrites any existing entry for the key.
type CacheStore interface {
	Get(ctx context.Context, key LegKey) (Entry, bool, error)
	Put(ctx context.Context, key LegKey, e Entry) error
}

// MatrixCache memoizes provider durations. Entries older than ttl read as
// misses; nothing is purged eagerly. Store failures degrade to misses.
type MatrixCache struct {
	store CacheStore
	ttl   time.Duration
	now   func() time.Time
}

func NewMatrixCache(store CacheStore, ttl time.Duration) *MatrixCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MatrixCache{store: store, ttl: ttl, now: time.Now}
}

// Lookup returns the cached minutes for a leg when present and fresh.
func (c *MatrixCache) Lookup(ctx context.Context, origin, destination string, mode Mode) (int, bool) {
	key := LegKey{Origin: origin, Destination: destination, Mode: mode.Provider()}
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Printf("[CACHE] lookup %s -> %s (%s) failed: %v", origin, destination, key.Mode, err)
		return 0, false
	}
	if !ok {
		return 0, false
	}
	if c.now().Sub(e.StoredAt) >= c.ttl {
		return 0, false
	}
	return e.Minutes, true
}

// Store records minutes for a leg, stamped with the current time.
func (c *MatrixCache) Store(ctx context.Context, origin, destination string, mode Mode, minutes int) {
	key := LegKey{Origin: origin, Destination: destination, Mode: mode.Provider()}
	if err := c.store.Put(ctx, key, Entry{Minutes: minutes, StoredAt: c.now()}); err != nil {
		log.Printf("[CACHE] store %s -> %s (%s) failed: %v", origin, destination, key.Mode, err)
	}
}

func (c *MatrixCache) TTL() time.Duration {
	return c.ttl
}

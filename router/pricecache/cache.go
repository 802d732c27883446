// Package pricecache holds a time-bounded memo of venue-pair price
// estimates, shared across concurrent route discoveries.
package pricecache

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTTL bounds how long a cached price estimate is served.
const DefaultTTL = 2 * time.Second

type entry struct {
	// price is always quoted in the canonical direction of the pair key:
	// units of the higher-ordered token per unit of the lower-ordered one.
	price     decimal.Decimal
	timestamp time.Time
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries uint64
	Hits    uint64
	Misses  uint64
}

// Cache is a TTL price cache keyed by unordered token pair. Tokens are
// identified by opaque keys (the engine uses "chainID:address"). Both
// directions of a pair share one slot storing the canonical direction; Get
// inverts the price when the queried direction is reversed. Writes are
// last-writer-wins with no merge logic, so racing writers always leave a
// valid entry behind.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time

	hits   uint64
	misses uint64
}

// New creates a cache with the given TTL. A non-positive TTL falls back to
// DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock replaces the time source. Test hook; not safe to call once the
// cache is shared.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// pairKey normalizes an unordered token pair to a single slot key plus the
// orientation of the query relative to the canonical direction.
func pairKey(a, b string) (key string, inverted bool) {
	if a <= b {
		return a + "|" + b, false
	}
	return b + "|" + a, true
}

// Get returns the cached price of tokenB per unit of tokenA, if an entry
// exists and is younger than the TTL. A miss is silent, never an error.
func (c *Cache) Get(tokenA, tokenB string) (decimal.Decimal, bool) {
	key, inverted := pairKey(tokenA, tokenB)

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.timestamp) >= c.ttl {
		c.misses++
		c.mu.Unlock()
		return decimal.Zero, false
	}
	c.hits++
	c.mu.Unlock()

	if inverted {
		if e.price.IsZero() {
			return decimal.Zero, false
		}
		return decimal.NewFromInt(1).Div(e.price), true
	}
	return e.price, true
}

// Put records the price of tokenB per unit of tokenA, overwriting any
// existing entry for the pair and stamping the current time.
func (c *Cache) Put(tokenA, tokenB string, price decimal.Decimal) {
	key, inverted := pairKey(tokenA, tokenB)
	if inverted {
		if price.IsZero() {
			return
		}
		price = decimal.NewFromInt(1).Div(price)
	}

	c.mu.Lock()
	c.entries[key] = entry{price: price, timestamp: c.now()}
	c.mu.Unlock()
}

// Purge removes entries older than the TTL and returns how many were
// dropped. Expired entries are never served either way; this just reclaims
// memory on long-running processes.
func (c *Cache) Purge() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.timestamp) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries: uint64(len(c.entries)),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// Package pricecache layers the three price caches: an in-memory TTL cache,
// the persistent materials table, and the live scraper.
package pricecache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cassidypignatello/bangun/internal/model"
)

// Tier-1 cache defaults. Scrape results stay hot for a minute, which
// absorbs repeated lookups within one BOM (e.g. "semen" appearing in both
// foundation and finishing sections).
const (
	DefaultMaxEntries = 1000
	DefaultEntryTTL   = 60 * time.Second
	sweepInterval     = 5 * time.Minute
)

type memoryEntry struct {
	key       string
	products  []model.NormalizedProduct
	expiresAt time.Time
}

// MemoryCache is a TTL cache with LRU eviction over scrape result sets.
// Safe for concurrent use.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// NewMemoryCache creates a cache holding at most maxEntries result sets,
// each valid for ttl. Zero values select the defaults.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultEntryTTL
	}
	return &MemoryCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the cached result set and true on a fresh hit. Expired
// entries are removed on access.
func (c *MemoryCache) Get(key string) ([]model.NormalizedProduct, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*memoryEntry)
	if c.now().After(entry.expiresAt) {
		c.removeLocked(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return entry.products, true
}

// Set stores a result set under key, evicting the least recently used
// entries once the cache is full.
func (c *MemoryCache) Set(key string, products []model.NormalizedProduct) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.products = products
		entry.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&memoryEntry{
		key:       key,
		products:  products,
		expiresAt: c.now().Add(c.ttl),
	})
	c.entries[key] = el

	for len(c.entries) > c.maxEntries {
		c.removeLocked(c.order.Back())
	}
}

// Delete removes key if present.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
}

// Len reports the number of live entries, counting expired-but-unswept ones.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep drops every expired entry and returns how many were removed.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*memoryEntry).expiresAt) {
			c.removeLocked(el)
			removed++
		}
		el = prev
	}
	return removed
}

// StartSweeper sweeps expired entries in the background until ctx ends.
func (c *MemoryCache) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					zap.L().Debug("price cache sweep", zap.Int("removed", n))
				}
			}
		}
	}()
}

func (c *MemoryCache) removeLocked(el *list.Element) {
	entry := el.Value.(*memoryEntry)
	c.order.Remove(el)
	delete(c.entries, entry.key)
}

package pricecache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cassidypignatello/bangun/internal/model"
)

func listings(price int64) []model.NormalizedProduct {
	return []model.NormalizedProduct{{Name: "x", PriceIDR: price}}
}

func TestMemoryCacheHitAndExpiry(t *testing.T) {
	now := time.Now()
	c := NewMemoryCache(10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", listings(1000))

	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, int64(1000), got[0].PriceIDR)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok, "expired entry must miss")
	assert.Zero(t, c.Len(), "expired entry removed on access")
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	c := NewMemoryCache(2, time.Hour)

	c.Set("a", listings(1))
	c.Set("b", listings(2))
	_, _ = c.Get("a") // refresh a
	c.Set("c", listings(3))

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	_, okC := c.Get("c")
	assert.True(t, okA)
	assert.False(t, okB, "least recently used entry evicted")
	assert.True(t, okC)
}

func TestMemoryCacheSweep(t *testing.T) {
	now := time.Now()
	c := NewMemoryCache(10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", listings(1))
	c.Set("b", listings(2))
	now = now.Add(30 * time.Second)
	c.Set("c", listings(3))
	now = now.Add(45 * time.Second) // a and b past TTL, c still fresh

	removed := c.Sweep()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("c")
	assert.True(t, ok)
}

func TestMemoryCacheOverwriteRefreshes(t *testing.T) {
	now := time.Now()
	c := NewMemoryCache(10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", listings(1))
	now = now.Add(45 * time.Second)
	c.Set("k", listings(2))
	now = now.Add(30 * time.Second) // 75s after first set, 30s after second

	got, ok := c.Get("k")
	assert.True(t, ok, "overwrite must reset the TTL")
	assert.Equal(t, int64(2), got[0].PriceIDR)
}

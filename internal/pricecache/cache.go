package pricecache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cassidypignatello/bangun/internal/marketplace"
	"github.com/cassidypignatello/bangun/internal/model"
	"github.com/cassidypignatello/bangun/internal/scrape"
	"github.com/cassidypignatello/bangun/internal/store"
	"github.com/cassidypignatello/bangun/internal/textnorm"
)

// CachedSellerName labels the synthetic aggregated listing built from a
// persisted price record.
const CachedSellerName = "Cached Price"

// Cache orchestrates the three price tiers for one marketplace:
//
//	Tier 1: in-memory TTL cache, instant and free
//	Tier 2: materials table, fresh for 7 days
//	Tier 3: live actor scrape, slow and billed per result
//
// Concurrent lookups for the same key share a single scrape via
// singleflight, so a BOM with duplicate materials bills once.
type Cache struct {
	mem      *MemoryCache
	store    store.Store
	scraper  scrape.Scraper
	group    singleflight.Group
	freshTTL time.Duration
}

// Option configures a Cache.
type Option func(*Cache)

// WithMemoryCache replaces the default Tier-1 cache.
func WithMemoryCache(mem *MemoryCache) Option {
	return func(c *Cache) { c.mem = mem }
}

// WithFreshTTL overrides the Tier-2 freshness window.
func WithFreshTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.freshTTL = ttl }
}

// New builds a Cache over the given store and scraper.
func New(st store.Store, scraper scrape.Scraper, opts ...Option) *Cache {
	c := &Cache{
		mem:      NewMemoryCache(DefaultMaxEntries, DefaultEntryTTL),
		store:    st,
		scraper:  scraper,
		freshTTL: store.PriceCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source labels the scraper backing Tier 3.
func (c *Cache) Source() model.PriceSource {
	return c.scraper.Source()
}

// StartSweeper runs the Tier-1 background sweeper until ctx ends.
func (c *Cache) StartSweeper(ctx context.Context) {
	c.mem.StartSweeper(ctx)
}

// FetchPrices returns listings for a material, walking the tiers in order.
// A Tier-2 hit yields a single synthetic listing carrying the persisted
// price statistics; a Tier-3 scrape yields up to maxResults individual
// listings and persists the snapshot best-effort.
func (c *Cache) FetchPrices(ctx context.Context, materialName string, maxResults int) ([]model.NormalizedProduct, error) {
	return c.fetch(ctx, cacheKey("tokopedia", materialName, maxResults), materialName, maxResults, 0)
}

// FetchBestSellerCandidates is FetchPrices for the single-winner flow. It
// uses a separate Tier-1 namespace and drops listings that cannot cover
// requiredQuantity, so a cached median result set never leaks into a
// best-seller ranking and vice versa.
func (c *Cache) FetchBestSellerCandidates(ctx context.Context, materialName string, maxResults int, requiredQuantity float64) ([]model.NormalizedProduct, error) {
	return c.fetch(ctx, cacheKey("best_seller", materialName, maxResults), materialName, maxResults, requiredQuantity)
}

// cacheKey builds the Tier-1 key on the normalized name so word-order
// variants of one material share an entry.
func cacheKey(namespace, materialName string, maxResults int) string {
	name := textnorm.Normalize(materialName)
	if name == "" {
		name = strings.ToLower(strings.TrimSpace(materialName))
	}
	return fmt.Sprintf("%s:%s:%d", namespace, name, maxResults)
}

func (c *Cache) fetch(ctx context.Context, key, materialName string, maxResults int, requiredQuantity float64) ([]model.NormalizedProduct, error) {
	// Tier 1.
	if products, ok := c.mem.Get(key); ok {
		return products, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check under the flight lock: a concurrent caller may have
		// populated Tier 1 while this one queued.
		if products, ok := c.mem.Get(key); ok {
			return products, nil
		}

		// Tier 2.
		if products := c.lookupStored(ctx, materialName); products != nil {
			c.mem.Set(key, products)
			return products, nil
		}

		// Tier 3.
		products, err := c.scrapeLive(ctx, materialName, maxResults, requiredQuantity)
		if err != nil {
			return nil, err
		}
		c.mem.Set(key, products)
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.NormalizedProduct), nil
}

// lookupStored returns the synthetic aggregated listing for a fresh Tier-2
// record, or nil to fall through. Store failures fall through too: a broken
// database must not block live resolution.
func (c *Cache) lookupStored(ctx context.Context, materialName string) []model.NormalizedProduct {
	rec, err := c.store.FindPriceRecord(ctx, materialName)
	if err != nil {
		zap.L().Warn("price record lookup failed, falling back to live scrape",
			zap.String("material", materialName),
			zap.Error(err),
		)
		return nil
	}
	if rec == nil || !rec.Fresh(time.Now().UTC(), c.freshTTL) {
		return nil
	}

	return []model.NormalizedProduct{{
		Name:       rec.NameID,
		PriceIDR:   int64(rec.PriceAvg),
		URL:        rec.ProductURL,
		SellerName: CachedSellerName,
		Cached:     true,
		PriceRange: &model.PriceRange{
			Min:    rec.PriceMin,
			Max:    rec.PriceMax,
			Median: rec.PriceMedian,
		},
	}}
}

func (c *Cache) scrapeLive(ctx context.Context, materialName string, maxResults int, requiredQuantity float64) ([]model.NormalizedProduct, error) {
	raws, err := c.scraper.Search(ctx, materialName, maxResults)
	if err != nil {
		return nil, eris.Wrapf(err, "pricecache: live scrape %q", materialName)
	}

	var products []model.NormalizedProduct
	if requiredQuantity > 0 {
		products = marketplace.MapAvailable(raws, requiredQuantity)
		// When nothing has sufficient stock the price signal is still
		// worth keeping; the caller sees listings without a buy link.
		if len(products) == 0 {
			requiredQuantity = 0
		}
	}
	if requiredQuantity <= 0 {
		products = make([]model.NormalizedProduct, 0, len(raws))
		for _, raw := range raws {
			products = append(products, marketplace.MapListing(raw))
		}
	}

	// Persist best-effort: scrape results are already in hand, a failed
	// write only costs the next caller a re-scrape.
	if rec := store.BuildPriceRecord(materialName, products, scrape.SearchURL(materialName)); rec != nil {
		if _, err := c.store.UpsertPriceRecord(ctx, rec); err != nil {
			zap.L().Warn("price record persist failed",
				zap.String("material", materialName),
				zap.Error(err),
			)
		}
	}

	return products, nil
}

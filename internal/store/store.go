// Package store persists the material price cache and estimation projects.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cassidypignatello/bangun/internal/marketplace"
	"github.com/cassidypignatello/bangun/internal/model"
	"github.com/cassidypignatello/bangun/internal/textnorm"
)

// PriceCacheTTL is how long a persisted price record counts as fresh.
const PriceCacheTTL = 7 * 24 * time.Hour

// Store defines the persistence interface for price records and projects.
// Find and Get methods return (nil, nil) on a clean miss.
type Store interface {
	// Price cache
	FindPriceRecord(ctx context.Context, materialName string) (*model.PriceRecord, error)
	SearchMaterials(ctx context.Context, query string, limit int) ([]model.PriceRecord, error)
	UpsertPriceRecord(ctx context.Context, rec *model.PriceRecord) (*model.PriceRecord, error)
	StaleMaterials(ctx context.Context, maxAge time.Duration, limit int) ([]model.PriceRecord, error)

	// Projects
	SaveProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	UpdateProjectStatus(ctx context.Context, id string, status model.ProjectStatus) error
	UpdateProjectProgress(ctx context.Context, id string, progress model.Progress) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var displayCaser = cases.Title(language.Indonesian)

// BuildPriceRecord derives the cache payload for one material from a fresh
// scrape. Returns nil when no product carries a usable price; nothing gets
// persisted in that case. The record's identity fields describe the material
// as searched; the backend reconciles them against existing rows on upsert.
func BuildPriceRecord(materialName string, products []model.NormalizedProduct, searchQuery string) *model.PriceRecord {
	stats := marketplace.ComputePriceStats(products)
	if stats.SampleSize == 0 {
		return nil
	}

	collapsed := strings.Join(strings.Fields(materialName), " ")
	display := displayCaser.String(collapsed)
	lookupKey := strings.ToLower(collapsed)

	seller := marketplace.AggregateSellerStats(products)

	// The best-ranked product's URL becomes the representative link so cached
	// lookups still point at a real listing.
	var productURL string
	if best := marketplace.RankBestSellers(products, 1, false); len(best) > 0 {
		productURL = best[0].Product.URL
	}

	return &model.PriceRecord{
		MaterialCode:   dynamicMaterialCode(),
		NormalizedName: textnorm.Normalize(materialName),
		NameID:         display,
		NameEN:         display,
		Category:       "dynamic",
		Unit:           textnorm.InferUnit(collapsed),
		PriceMin:       stats.Min,
		PriceMax:       stats.Max,
		PriceAvg:       stats.Avg,
		PriceMedian:    stats.Median,
		SampleSize:     stats.SampleSize,
		UpdatedAt:      time.Now().UTC(),
		RatingAvg:      seller.RatingAvg,
		RatingSamples:  seller.RatingSampleSize,
		CountSoldTotal: seller.CountSoldTotal,
		SellerLocation: seller.SellerLocation,
		SellerTier:     seller.SellerTier,
		SearchQuery:    searchQuery,
		ProductURL:     productURL,
		Aliases:        []string{lookupKey},
	}
}

// dynamicMaterialCode mints a code for cache entries created outside the
// seeded catalog, e.g. "DYN-3FA9C21B".
func dynamicMaterialCode() string {
	return "DYN-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// mergeAliases appends the new aliases that are not already present,
// preserving order. Aliases only ever grow.
func mergeAliases(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	merged := existing
	for _, a := range existing {
		seen[a] = struct{}{}
	}
	for _, a := range incoming {
		if _, ok := seen[a]; !ok {
			seen[a] = struct{}{}
			merged = append(merged, a)
		}
	}
	return merged
}

// Package model defines the shared domain types for BOM generation and
// price resolution.
package model

import "time"

// SellerTier is the marketplace-assigned trust badge for a seller.
type SellerTier string

const (
	SellerTierRegular       SellerTier = "regular"
	SellerTierPowerMerchant SellerTier = "power_merchant"
	SellerTierOfficialStore SellerTier = "official_store"
)

// Priority orders tiers for aggregation: official > power merchant > regular.
func (t SellerTier) Priority() int {
	switch t {
	case SellerTierOfficialStore:
		return 3
	case SellerTierPowerMerchant:
		return 2
	case SellerTierRegular:
		return 1
	default:
		return 0
	}
}

// PriceSource identifies how a price decision was produced.
type PriceSource string

const (
	// SourceCached means an exact normalized-name hit on a fresh PriceRecord.
	SourceCached PriceSource = "cached"
	// SourceHistorical means a high-similarity (>0.95) display-name match.
	SourceHistorical PriceSource = "historical"
	// SourceHistoricalFuzzy means a fuzzy (>0.90) display-name match.
	SourceHistoricalFuzzy PriceSource = "historical_fuzzy"
	// SourceTokopedia means a live marketplace scrape with quality filtering.
	SourceTokopedia PriceSource = "tokopedia"
	// SourceMockData means the mock scraper backend produced the listings.
	SourceMockData PriceSource = "mock_data"
	// SourceEstimated means the category/unit fallback table was used.
	SourceEstimated PriceSource = "estimated"
)

// MaterialRequest is one BOM line as generated upstream. Immutable input to
// price resolution; quantity positivity is validated at generation time.
type MaterialRequest struct {
	Name        string  `json:"material_name"`
	EnglishName string  `json:"english_name,omitempty"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	Category    string  `json:"category"`
}

// DisplayName prefers the English name for user-facing progress output.
func (m MaterialRequest) DisplayName() string {
	if m.EnglishName != "" {
		return m.EnglishName
	}
	return m.Name
}

// PriceRange carries min/max/median statistics on a synthetic cached listing.
type PriceRange struct {
	Min    int64 `json:"min"`
	Max    int64 `json:"max"`
	Median int64 `json:"median"`
}

// NormalizedProduct is the canonical marketplace listing, derived
// deterministically from a raw scraper record. Zero values mean "unknown",
// never a real observation.
type NormalizedProduct struct {
	Name           string      `json:"name"`
	PriceIDR       int64       `json:"price_idr"`
	Rating         float64     `json:"rating"`
	SoldCount      int64       `json:"sold_count"`
	SellerName     string      `json:"seller"`
	SellerLocation string      `json:"seller_location,omitempty"`
	SellerTier     SellerTier  `json:"seller_tier,omitempty"`
	URL            string      `json:"url"`
	Cached         bool        `json:"cached,omitempty"`
	PriceRange     *PriceRange `json:"price_range,omitempty"`
}

// SellerStats aggregates seller signals over one material's result set.
// Recomputed on every fresh scrape; overwrites the prior aggregate.
type SellerStats struct {
	RatingAvg        float64    `json:"rating_avg"`
	RatingSampleSize int        `json:"rating_sample_size"`
	CountSoldTotal   int64      `json:"count_sold_total"`
	SellerLocation   string     `json:"seller_location,omitempty"`
	SellerTier       SellerTier `json:"seller_tier,omitempty"`
}

// PriceRecord is the persistent cache entry for one canonical material.
// normalized_name is the unique lookup key; aliases grow monotonically.
type PriceRecord struct {
	ID             string     `json:"id"`
	MaterialCode   string     `json:"material_code"`
	NormalizedName string     `json:"normalized_name"`
	NameID         string     `json:"name_id"`
	NameEN         string     `json:"name_en"`
	Category       string     `json:"category"`
	Unit           string     `json:"unit"`
	PriceMin       int64      `json:"price_min"`
	PriceMax       int64      `json:"price_max"`
	PriceAvg       float64    `json:"price_avg"`
	PriceMedian    int64      `json:"price_median"`
	SampleSize     int        `json:"price_sample_size"`
	UpdatedAt      time.Time  `json:"price_updated_at"`
	RatingAvg      float64    `json:"rating_avg"`
	RatingSamples  int        `json:"rating_sample_size"`
	CountSoldTotal int64      `json:"count_sold_total"`
	SellerLocation string     `json:"seller_location,omitempty"`
	SellerTier     SellerTier `json:"seller_tier,omitempty"`
	SearchQuery    string     `json:"search_query,omitempty"`
	ProductURL     string     `json:"product_url,omitempty"`
	Aliases        []string   `json:"aliases,omitempty"`
}

// Fresh reports whether the record's price data is usable: a recorded
// timestamp within ttl and a positive average price.
func (r *PriceRecord) Fresh(now time.Time, ttl time.Duration) bool {
	if r == nil || r.UpdatedAt.IsZero() || r.PriceAvg <= 0 {
		return false
	}
	return now.Sub(r.UpdatedAt) < ttl
}

// ScoredCandidate is a NormalizedProduct with its score breakdown.
// Ephemeral: produced per resolution call, never persisted.
type ScoredCandidate struct {
	Product       NormalizedProduct `json:"product"`
	TotalScore    float64           `json:"total_score"`
	RatingScore   float64           `json:"rating_score"`
	SalesScore    float64           `json:"sales_score"`
	PriceScore    float64           `json:"price_score"`
	LocationScore float64           `json:"location_score,omitempty"`
}

// PriceDecision is the resolver's final output for one material request.
// Source and Confidence always disclose how real the price is.
type PriceDecision struct {
	MaterialName      string      `json:"material_name"`
	EnglishName       string      `json:"english_name,omitempty"`
	Quantity          float64     `json:"quantity"`
	Unit              string      `json:"unit"`
	UnitPriceIDR      int64       `json:"unit_price_idr"`
	TotalPriceIDR     int64       `json:"total_price_idr"`
	Source            PriceSource `json:"source"`
	Confidence        float64     `json:"confidence"`
	MarketplaceURL    string      `json:"marketplace_url,omitempty"`
	QualityScore      float64     `json:"quality_score,omitempty"`
	ProductsAnalyzed  int         `json:"products_analyzed,omitempty"`
	ProductsQualified int         `json:"products_qualified,omitempty"`
}

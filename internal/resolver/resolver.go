// Package resolver prices material requests through a cost-ordered fallback
// chain: persisted history first, live marketplace data second, a static
// category estimate last. Resolution never fails outright; degradation is
// disclosed through the decision's source and confidence fields.
package resolver

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cassidypignatello/bangun/internal/marketplace"
	"github.com/cassidypignatello/bangun/internal/model"
	"github.com/cassidypignatello/bangun/internal/pricecache"
	"github.com/cassidypignatello/bangun/internal/store"
	"github.com/cassidypignatello/bangun/internal/textnorm"
)

// Live-stage tuning. More candidates than needed are requested so the
// quality filter has outliers to discard.
const (
	liveCandidates = 10
	liveTopN       = 5
	bestSellerTopN = 5

	baseConfidence  = 0.75
	qualifiedBonus  = 0.03
	maxQualityBonus = 0.15

	estimateConfidence = 0.3
)

// timeNow is swapped out in tests.
var timeNow = func() time.Time { return time.Now().UTC() }

// Resolver walks the fallback chain for one material at a time.
type Resolver struct {
	store    store.Store
	cache    *pricecache.Cache
	enhancer TermEnhancer
	table    FallbackTable
}

// New builds a Resolver. enhancer may be nil to skip term enhancement.
func New(st store.Store, cache *pricecache.Cache, enhancer TermEnhancer, table FallbackTable) *Resolver {
	return &Resolver{store: st, cache: cache, enhancer: enhancer, table: table}
}

// Resolve prices one material request. The stages run in cost order and the
// first usable price wins: exact cache hit, historical similarity match,
// live marketplace resolution, category estimate.
func (r *Resolver) Resolve(ctx context.Context, m model.MaterialRequest) model.PriceDecision {
	if d, ok := r.resolveCached(ctx, m); ok {
		return d
	}
	if d, ok := r.resolveHistorical(ctx, m); ok {
		return d
	}
	if d, ok := r.resolveLive(ctx, m); ok {
		return d
	}
	return r.Estimate(m)
}

// resolveCached handles the free path: a fresh persisted record whose
// normalized name matches the request exactly.
func (r *Resolver) resolveCached(ctx context.Context, m model.MaterialRequest) (model.PriceDecision, bool) {
	rec, err := r.store.FindPriceRecord(ctx, m.Name)
	if err != nil {
		zap.L().Warn("price record lookup failed",
			zap.String("material", m.Name),
			zap.Error(err),
		)
		return model.PriceDecision{}, false
	}
	if !rec.Fresh(timeNow(), store.PriceCacheTTL) {
		return model.PriceDecision{}, false
	}
	if rec.NormalizedName != textnorm.Normalize(m.Name) {
		return model.PriceDecision{}, false
	}

	d := r.decision(m, int64(math.Round(rec.PriceAvg)), model.SourceCached, 1.0)
	d.MarketplaceURL = rec.ProductURL
	return d, true
}

// resolveHistorical accepts a similarity match against persisted display
// names: >0.95 counts as historical, >0.90 as historical_fuzzy. Confidence
// is the similarity itself.
func (r *Resolver) resolveHistorical(ctx context.Context, m model.MaterialRequest) (model.PriceDecision, bool) {
	rec, sim := r.historicalMatch(ctx, m.Name)
	if rec == nil || sim <= fuzzyThreshold {
		return model.PriceDecision{}, false
	}

	source := model.SourceHistoricalFuzzy
	if sim > exactThreshold {
		source = model.SourceHistorical
	}

	d := r.decision(m, int64(math.Round(rec.PriceAvg)), source, sim)
	d.MarketplaceURL = rec.ProductURL
	return d, true
}

// resolveLive scrapes the marketplace through the tiered cache, quality
// filters the listings and prices the material at the median of the
// survivors. An empty result set is retried once with a simplified search
// term before giving up.
func (r *Resolver) resolveLive(ctx context.Context, m model.MaterialRequest) (model.PriceDecision, bool) {
	term := r.searchTerm(ctx, m.Name)

	products, err := r.cache.FetchPrices(ctx, term, liveCandidates)
	if err != nil {
		zap.L().Warn("live price fetch failed",
			zap.String("material", m.Name),
			zap.String("term", term),
			zap.Error(err),
		)
	}
	if len(products) == 0 {
		if simplified := textnorm.Simplify(m.Name); simplified != term {
			zap.L().Info("retrying scrape with simplified term",
				zap.String("material", m.Name),
				zap.String("term", simplified),
			)
			products, err = r.cache.FetchPrices(ctx, simplified, liveCandidates)
			if err != nil {
				zap.L().Warn("simplified price fetch failed",
					zap.String("material", m.Name),
					zap.Error(err),
				)
			}
		}
	}
	if len(products) == 0 {
		return model.PriceDecision{}, false
	}

	qualified := marketplace.FilterQuality(products, marketplace.MinQualityScore, liveTopN)
	survivors := make([]model.NormalizedProduct, len(qualified))
	for i, q := range qualified {
		survivors[i] = q.Product
	}

	unitPrice := marketplace.MedianPrice(survivors)
	if unitPrice <= 0 {
		// The survivors carry no prices; a raw median over the full set is
		// the last honest number available.
		unitPrice = marketplace.MedianPrice(products)
		if unitPrice <= 0 {
			return model.PriceDecision{}, false
		}
		qualified = nil
	}

	confidence := baseConfidence + math.Min(maxQualityBonus, float64(len(qualified))*qualifiedBonus)
	d := r.decision(m, unitPrice, r.cache.Source(), confidence)
	d.ProductsAnalyzed = len(products)
	d.ProductsQualified = len(qualified)
	if len(qualified) > 0 {
		best := qualified[0]
		d.MarketplaceURL = best.Product.URL
		d.QualityScore = marketplace.ScoreQuality(best.Product, marketplace.MedianPrice(products)).TotalScore
	}
	return d, true
}

// Estimate is the unconditional terminal stage: a static category and unit
// table with low disclosed confidence and no marketplace link.
func (r *Resolver) Estimate(m model.MaterialRequest) model.PriceDecision {
	return r.decision(m, r.table.Estimate(m.Category, m.Unit), model.SourceEstimated, estimateConfidence)
}

// BestSeller picks the single winning listing for a material with the
// best-seller scoring profile over availability-filtered candidates. local
// applies the Bali locale bonus.
func (r *Resolver) BestSeller(ctx context.Context, name string, requiredQuantity float64, local bool) (*model.ScoredCandidate, error) {
	products, err := r.cache.FetchBestSellerCandidates(ctx, name, liveCandidates, requiredQuantity)
	if err != nil {
		return nil, err
	}

	ranked := marketplace.RankBestSellers(products, bestSellerTopN, local)
	if len(ranked) == 0 {
		return nil, eris.Errorf("resolver: no purchasable listings for %q", name)
	}
	return &ranked[0], nil
}

// searchTerm asks the enhancer for a marketplace-friendly term, falling
// back to the original name on any failure.
func (r *Resolver) searchTerm(ctx context.Context, name string) string {
	if r.enhancer == nil {
		return name
	}
	enhanced, err := r.enhancer.Enhance(ctx, name)
	if err != nil {
		zap.L().Debug("term enhancement failed, using original name",
			zap.String("material", name),
			zap.Error(err),
		)
		return name
	}
	if enhanced = strings.TrimSpace(enhanced); enhanced == "" {
		return name
	}
	return enhanced
}

func (r *Resolver) decision(m model.MaterialRequest, unitPrice int64, source model.PriceSource, confidence float64) model.PriceDecision {
	return model.PriceDecision{
		MaterialName:  m.Name,
		EnglishName:   m.EnglishName,
		Quantity:      m.Quantity,
		Unit:          m.Unit,
		UnitPriceIDR:  unitPrice,
		TotalPriceIDR: int64(math.Round(float64(unitPrice) * m.Quantity)),
		Source:        source,
		Confidence:    confidence,
	}
}

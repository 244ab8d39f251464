package marketplace

import (
	"math"
	"sort"

	"github.com/cassidypignatello/bangun/internal/model"
)

// MedianPrice returns the median of the positive prices in the set, 0 when
// none exist. For an even count the two middle values are averaged with
// integer division, keeping the result a representable IDR amount.
func MedianPrice(products []model.NormalizedProduct) int64 {
	var prices []int64
	for _, p := range products {
		if p.PriceIDR > 0 {
			prices = append(prices, p.PriceIDR)
		}
	}
	if len(prices) == 0 {
		return 0
	}

	sort.Slice(prices, func(i, j int) bool { return prices[i] < prices[j] })
	mid := len(prices) / 2
	if len(prices)%2 == 1 {
		return prices[mid]
	}
	return (prices[mid-1] + prices[mid]) / 2
}

// PriceStats summarizes the positive prices in a result set.
type PriceStats struct {
	Min        int64
	Max        int64
	Avg        float64
	Median     int64
	SampleSize int
}

// ComputePriceStats derives min/max/avg/median over the products that carry
// a positive price. A zero SampleSize means no price data at all.
func ComputePriceStats(products []model.NormalizedProduct) PriceStats {
	var stats PriceStats
	var sum int64
	for _, p := range products {
		if p.PriceIDR <= 0 {
			continue
		}
		if stats.SampleSize == 0 || p.PriceIDR < stats.Min {
			stats.Min = p.PriceIDR
		}
		if p.PriceIDR > stats.Max {
			stats.Max = p.PriceIDR
		}
		sum += p.PriceIDR
		stats.SampleSize++
	}
	if stats.SampleSize == 0 {
		return stats
	}
	stats.Avg = float64(sum) / float64(stats.SampleSize)
	stats.Median = MedianPrice(products)
	return stats
}

// AggregateSellerStats collapses seller signals over one material's result
// set: average rating over products that have one, total units sold, the
// most common seller location, and the highest seller tier present.
func AggregateSellerStats(products []model.NormalizedProduct) model.SellerStats {
	var stats model.SellerStats
	if len(products) == 0 {
		return stats
	}

	var ratingSum float64
	locationCounts := make(map[string]int)
	for _, p := range products {
		if p.Rating > 0 {
			ratingSum += p.Rating
			stats.RatingSampleSize++
		}
		stats.CountSoldTotal += p.SoldCount
		if p.SellerLocation != "" {
			locationCounts[p.SellerLocation]++
		}
		if p.SellerTier.Priority() > stats.SellerTier.Priority() {
			stats.SellerTier = p.SellerTier
		}
	}

	if stats.RatingSampleSize > 0 {
		stats.RatingAvg = math.Round(ratingSum/float64(stats.RatingSampleSize)*100) / 100
	}

	best := 0
	for loc, n := range locationCounts {
		// Ties break lexicographically so the aggregate is deterministic.
		if n > best || (n == best && loc < stats.SellerLocation) {
			best = n
			stats.SellerLocation = loc
		}
	}

	return stats
}

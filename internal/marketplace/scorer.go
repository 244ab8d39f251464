package marketplace

import (
	"math"
	"sort"
	"strings"

	"github.com/cassidypignatello/bangun/internal/model"
)

// Quality filter defaults: candidates scoring below MinQualityScore are
// dropped, the survivors capped at DefaultTopN.
const (
	MinQualityScore = 0.3
	DefaultTopN     = 3
)

// Profile selects the scoring formula for a resolution call.
type Profile string

const (
	// ProfileQuality penalizes price outliers; used for median aggregation.
	ProfileQuality Profile = "quality"
	// ProfileBestSeller rewards the lowest price; used to pick one winner.
	ProfileBestSeller Profile = "best_seller"
)

// baliRegions drives the locale bonus for the best-seller profile. Matched
// case-insensitively as substrings of the seller location.
var baliRegions = []string{
	"bali",
	"denpasar",
	"badung",
	"gianyar",
	"tabanan",
	"buleleng",
	"karangasem",
	"klungkung",
	"bangli",
	"jembrana",
	"kuta",
	"ubud",
}

// salesScore maps sold counts onto [0,1] on a log10 scale: 10 sales is about
// 0.25, 100 is 0.5, 1000 is 0.75, anything from 10000 up saturates at 1.0.
func salesScore(sold int64) float64 {
	switch {
	case sold <= 0:
		return 0.0
	case sold >= 10000:
		return 1.0
	default:
		return math.Log10(float64(sold)+1) / 4.0
	}
}

func ratingScore(rating float64) float64 {
	if rating <= 0 {
		return 0.0
	}
	return math.Min(rating/5.0, 1.0)
}

// ScoreQuality scores one product for median aggregation, weighting rating
// 0.40, sales volume 0.35 and proximity to the median price 0.25. Prices far
// from the median score low, which pushes scam listings and bulk lots out of
// the qualified set.
func ScoreQuality(p model.NormalizedProduct, medianPrice int64) model.ScoredCandidate {
	rs := ratingScore(p.Rating)
	ss := salesScore(p.SoldCount)

	ps := 0.5
	if medianPrice > 0 && p.PriceIDR > 0 {
		deviation := math.Abs(float64(p.PriceIDR-medianPrice)) / float64(medianPrice)
		ps = math.Max(0, 1.0-deviation)
	}

	return model.ScoredCandidate{
		Product:     p,
		RatingScore: rs,
		SalesScore:  ss,
		PriceScore:  ps,
		TotalScore:  rs*0.40 + ss*0.35 + ps*0.25,
	}
}

// ScoreBestSeller scores one product for the single-winner flow, weighting
// rating 0.4, sales 0.4 and price 0.2 where the lowest price in the result
// set scores 1.0.
func ScoreBestSeller(p model.NormalizedProduct, minPrice, maxPrice int64) model.ScoredCandidate {
	rs := ratingScore(p.Rating)
	ss := salesScore(p.SoldCount)

	var ps float64
	switch {
	case maxPrice > minPrice && p.PriceIDR > 0:
		ps = 1.0 - float64(p.PriceIDR-minPrice)/float64(maxPrice-minPrice)
	case p.PriceIDR > 0:
		ps = 0.5
	default:
		ps = 0.0
	}

	return model.ScoredCandidate{
		Product:     p,
		RatingScore: rs,
		SalesScore:  ss,
		PriceScore:  ps,
		TotalScore:  rs*0.4 + ss*0.4 + ps*0.2,
	}
}

// ScoreBestSellerLocal extends ScoreBestSeller with a 0.1-weight locale term
// favoring Bali-region sellers. The base weights shrink by 10% so the total
// still sums to 1.0.
func ScoreBestSellerLocal(p model.NormalizedProduct, minPrice, maxPrice int64) model.ScoredCandidate {
	sc := ScoreBestSeller(p, minPrice, maxPrice)

	ls := 0.5
	if isBaliLocation(p.SellerLocation) {
		ls = 1.0
	}
	sc.LocationScore = ls
	sc.TotalScore = sc.RatingScore*0.36 + sc.SalesScore*0.36 + sc.PriceScore*0.18 + ls*0.1
	return sc
}

func isBaliLocation(location string) bool {
	if location == "" {
		return false
	}
	lower := strings.ToLower(location)
	for _, region := range baliRegions {
		if strings.Contains(lower, region) {
			return true
		}
	}
	return false
}

// FilterQuality scores every product against the set's median price, keeps
// those at or above minScore, and returns the top n by score. When nothing
// clears the bar the best n scorers are returned anyway so a live scrape is
// never discarded wholesale. When no product has a price the first n inputs
// pass through unscored.
func FilterQuality(products []model.NormalizedProduct, minScore float64, n int) []model.ScoredCandidate {
	if len(products) == 0 {
		return nil
	}

	median := MedianPrice(products)
	if median == 0 {
		out := make([]model.ScoredCandidate, 0, n)
		for _, p := range products {
			if len(out) == n {
				break
			}
			out = append(out, model.ScoredCandidate{Product: p})
		}
		return out
	}

	scored := make([]model.ScoredCandidate, len(products))
	for i, p := range products {
		scored[i] = ScoreQuality(p, median)
	}

	qualified := make([]model.ScoredCandidate, 0, len(scored))
	for _, s := range scored {
		if s.TotalScore >= minScore {
			qualified = append(qualified, s)
		}
	}
	if len(qualified) == 0 {
		qualified = scored
	}

	sortByScore(qualified)
	if len(qualified) > n {
		qualified = qualified[:n]
	}
	return qualified
}

// RankBestSellers scores the products that carry a positive price with the
// best-seller formula and returns the top n. Availability filtering happens
// upstream on the raw listings, so every input here is purchasable. The
// local variant applies the Bali bonus.
func RankBestSellers(products []model.NormalizedProduct, n int, local bool) []model.ScoredCandidate {
	priced := make([]model.NormalizedProduct, 0, len(products))
	for _, p := range products {
		if p.PriceIDR > 0 {
			priced = append(priced, p)
		}
	}
	if len(priced) == 0 {
		return nil
	}

	minPrice, maxPrice := priced[0].PriceIDR, priced[0].PriceIDR
	for _, p := range priced[1:] {
		if p.PriceIDR < minPrice {
			minPrice = p.PriceIDR
		}
		if p.PriceIDR > maxPrice {
			maxPrice = p.PriceIDR
		}
	}

	scored := make([]model.ScoredCandidate, len(priced))
	for i, p := range priced {
		if local {
			scored[i] = ScoreBestSellerLocal(p, minPrice, maxPrice)
		} else {
			scored[i] = ScoreBestSeller(p, minPrice, maxPrice)
		}
	}

	sortByScore(scored)
	if len(scored) > n {
		scored = scored[:n]
	}
	return scored
}

// sortByScore orders candidates by total score descending. The sort is
// stable so equal scores keep their scrape order.
func sortByScore(cands []model.ScoredCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].TotalScore > cands[j].TotalScore
	})
}

// MapAvailable filters raw listings for availability, then maps each
// survivor to its canonical form. requiredQuantity of 0 checks stock
// positivity only.
func MapAvailable(raws []RawListing, requiredQuantity float64) []model.NormalizedProduct {
	out := make([]model.NormalizedProduct, 0, len(raws))
	for _, raw := range raws {
		if !Available(raw, requiredQuantity) {
			continue
		}
		out = append(out, MapListing(raw))
	}
	return out
}

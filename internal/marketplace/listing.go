// Package marketplace normalizes raw Tokopedia scraper output into canonical
// listings and ranks them by seller quality signals.
package marketplace

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cassidypignatello/bangun/internal/model"
)

// RawListing is one untyped item as returned by a scraper actor. Different
// actors disagree on field names and value types, so extraction probes a
// priority chain per field.
type RawListing map[string]any

var (
	nonDigitRe = regexp.MustCompile(`[^\d]`)
	ribuRe     = regexp.MustCompile(`([\d.,]+)\s*rb`)
)

// MapListing converts a raw scraper item into a NormalizedProduct. Fields
// that cannot be extracted stay at their zero value.
func MapListing(raw RawListing) model.NormalizedProduct {
	p := model.NormalizedProduct{
		PriceIDR:   extractPrice(raw),
		Rating:     extractRating(raw),
		SoldCount:  extractSoldCount(raw),
		SellerTier: model.SellerTierRegular,
	}

	if name, ok := firstString(raw, "name", "title"); ok {
		p.Name = name
	}
	if url, ok := firstString(raw, "url", "link"); ok {
		p.URL = url
	}

	switch shop := raw["shop"].(type) {
	case map[string]any:
		if name, ok := stringField(shop, "name"); ok {
			p.SellerName = name
		}
		if loc, ok := firstString(shop, "location", "city"); ok {
			p.SellerLocation = loc
		}
		p.SellerTier = sellerTier(shop)
	case string:
		p.SellerName = shop
	default:
		if name, ok := stringField(raw, "seller"); ok {
			p.SellerName = name
		}
	}

	if p.SellerLocation == "" {
		if loc, ok := firstString(raw, "location", "city"); ok {
			p.SellerLocation = loc
		}
	}

	return p
}

func sellerTier(shop map[string]any) model.SellerTier {
	badge := ""
	if b, ok := stringField(shop, "badge"); ok {
		badge = strings.ToLower(b)
	}
	official := boolField(shop, "isOfficial") || boolField(shop, "is_official")
	power := boolField(shop, "isPowerMerchant") || boolField(shop, "is_power_merchant")

	switch {
	case official || strings.Contains(badge, "official"):
		return model.SellerTierOfficialStore
	case power || strings.Contains(badge, "power") || strings.Contains(badge, "pm"):
		return model.SellerTierPowerMerchant
	default:
		return model.SellerTierRegular
	}
}

// extractPrice probes priceInt, then price (number, nested object, or a
// formatted string like "Rp85.000"), then priceOriginal.
func extractPrice(raw RawListing) int64 {
	if n, ok := numberField(raw, "priceInt"); ok && n > 0 {
		return int64(n)
	}

	switch price := raw["price"].(type) {
	case map[string]any:
		if n, ok := numberField(price, "number"); ok {
			return int64(n)
		}
	case float64:
		return int64(price)
	case int:
		return int64(price)
	case int64:
		return price
	case string:
		if n := parseDigits(price); n > 0 {
			return n
		}
	}

	switch price := raw["priceOriginal"].(type) {
	case float64:
		return int64(price)
	case int:
		return int64(price)
	case string:
		if n := parseDigits(price); n > 0 {
			return n
		}
	}

	return 0
}

// extractRating probes rating, ratingAverage/rating_average, then stats.rating.
// Zero and negative values are treated as missing.
func extractRating(raw RawListing) float64 {
	for _, key := range []string{"rating", "ratingAverage", "rating_average"} {
		switch v := raw[key].(type) {
		case float64:
			if v > 0 {
				return v
			}
		case int:
			if v > 0 {
				return float64(v)
			}
		case string:
			if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
				return parsed
			}
		}
	}

	if stats, ok := raw["stats"].(map[string]any); ok {
		if n, ok := numberField(stats, "rating"); ok && n > 0 {
			return n
		}
	}

	return 0
}

// extractSoldCount probes sold (int or strings like "500+ terjual" and
// "1,5rb+ terjual"), then soldCount, stock.sold, and stats.sold.
func extractSoldCount(raw RawListing) int64 {
	switch sold := raw["sold"].(type) {
	case float64:
		return int64(sold)
	case int:
		return int64(sold)
	case string:
		if n, ok := parseRibu(sold); ok {
			return n
		}
		if n := parseDigits(sold); n > 0 {
			return n
		}
	}

	switch sold := raw["soldCount"].(type) {
	case float64:
		return int64(sold)
	case int:
		return int64(sold)
	case string:
		if n := parseDigits(sold); n > 0 {
			return n
		}
	}

	if stock, ok := raw["stock"].(map[string]any); ok {
		if n, ok := numberField(stock, "sold"); ok {
			return int64(n)
		}
	}
	if stats, ok := raw["stats"].(map[string]any); ok {
		if n, ok := numberField(stats, "sold"); ok {
			return int64(n)
		}
	}

	return 0
}

// parseRibu parses the Indonesian "rb" (ribu, thousand) suffix. Indonesian
// number format uses "." as the thousands separator and "," as the decimal:
// "1.500rb" is 1,500,000 while "1,5rb" is 1,500.
func parseRibu(s string) (int64, bool) {
	lower := strings.ToLower(s)
	if !strings.Contains(lower, "rb") {
		return 0, false
	}
	m := ribuRe.FindStringSubmatch(lower)
	if m == nil {
		return 0, false
	}

	num := strings.TrimSpace(m[1])
	hasDot := strings.Contains(num, ".")
	hasComma := strings.Contains(num, ",")
	switch {
	case hasDot && !hasComma:
		num = strings.ReplaceAll(num, ".", "")
	case hasComma && !hasDot:
		num = strings.ReplaceAll(num, ",", ".")
	case hasDot && hasComma:
		num = strings.ReplaceAll(num, ".", "")
		num = strings.ReplaceAll(num, ",", ".")
	}

	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return int64(f * 1000), true
}

func parseDigits(s string) int64 {
	cleaned := nonDigitRe.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0
	}
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Available reports whether a raw listing is purchasable: positive stock,
// enough stock for the required quantity when one is given, and an active
// status when a status field exists. Missing fields pass the check.
func Available(raw RawListing, requiredQuantity float64) bool {
	for _, key := range []string{"stock", "stockCount", "stock_count"} {
		if n, ok := numberField(raw, key); ok {
			if n <= 0 {
				return false
			}
			if requiredQuantity > 0 && n < requiredQuantity {
				return false
			}
			break
		}
	}

	if status, ok := stringField(raw, "status"); ok && status != "" {
		if strings.ToLower(status) != "active" {
			return false
		}
	}

	return true
}

func firstString(m map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := stringField(m, key); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func stringField(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func numberField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

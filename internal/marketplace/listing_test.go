package marketplace

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cassidypignatello/bangun/internal/model"
)

func TestExtractPriceFormats(t *testing.T) {
	cases := []struct {
		name string
		raw  RawListing
		want int64
	}{
		{"priceInt field", RawListing{"priceInt": float64(85000)}, 85000},
		{"price as number", RawListing{"price": float64(125000)}, 125000},
		{"price as rupiah string", RawListing{"price": "Rp85.000"}, 85000},
		{"price with space", RawListing{"price": "Rp 1.250.000"}, 1250000},
		{"price comma grouped", RawListing{"price": "85,000"}, 85000},
		{"nested price object", RawListing{"price": map[string]any{"number": float64(150000)}}, 150000},
		{"priceOriginal fallback", RawListing{"priceOriginal": "Rp70.000"}, 70000},
		{"priceInt wins over price", RawListing{"priceInt": float64(90000), "price": "Rp85.000"}, 90000},
		{"missing", RawListing{}, 0},
		{"garbage string", RawListing{"price": "hubungi penjual"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractPrice(tc.raw))
		})
	}
}

func TestExtractSoldCountRibu(t *testing.T) {
	cases := []struct {
		name string
		raw  RawListing
		want int64
	}{
		{"plain int", RawListing{"sold": float64(742)}, 742},
		{"terjual suffix", RawListing{"sold": "500+ terjual"}, 500},
		{"rb whole", RawListing{"sold": "2rb+ terjual"}, 2000},
		{"rb dot thousands", RawListing{"sold": "1.500rb"}, 1500000},
		{"rb comma decimal", RawListing{"sold": "1,5rb"}, 1500},
		{"rb mixed separators", RawListing{"sold": "1.234,5rb"}, 1234500},
		{"soldCount fallback", RawListing{"soldCount": "1.200"}, 1200},
		{"nested stock.sold", RawListing{"stock": map[string]any{"sold": float64(33)}}, 33},
		{"nested stats.sold", RawListing{"stats": map[string]any{"sold": float64(12)}}, 12},
		{"missing", RawListing{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractSoldCount(tc.raw))
		})
	}
}

func TestExtractRating(t *testing.T) {
	assert.Equal(t, 4.8, extractRating(RawListing{"rating": 4.8}))
	assert.Equal(t, 4.5, extractRating(RawListing{"rating": "4.5"}))
	assert.Equal(t, 4.9, extractRating(RawListing{"ratingAverage": 4.9}))
	assert.Equal(t, 4.2, extractRating(RawListing{"stats": map[string]any{"rating": 4.2}}))
	// Zero ratings mean "no reviews yet", so the fallback chain continues.
	assert.Equal(t, 4.7, extractRating(RawListing{"rating": float64(0), "rating_average": 4.7}))
	assert.Equal(t, 0.0, extractRating(RawListing{}))
}

func TestMapListingSellerTier(t *testing.T) {
	cases := []struct {
		name string
		shop map[string]any
		want model.SellerTier
	}{
		{"official flag", map[string]any{"name": "TokoBagus", "isOfficial": true}, model.SellerTierOfficialStore},
		{"official badge", map[string]any{"name": "TokoBagus", "badge": "Official Store"}, model.SellerTierOfficialStore},
		{"power flag", map[string]any{"name": "TokoBagus", "is_power_merchant": true}, model.SellerTierPowerMerchant},
		{"pm badge", map[string]any{"name": "TokoBagus", "badge": "PM Pro"}, model.SellerTierPowerMerchant},
		{"no badge", map[string]any{"name": "TokoBagus"}, model.SellerTierRegular},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := MapListing(RawListing{"shop": tc.shop})
			assert.Equal(t, tc.want, p.SellerTier)
			assert.Equal(t, "TokoBagus", p.SellerName)
		})
	}
}

func TestMapListingFieldFallbacks(t *testing.T) {
	p := MapListing(RawListing{
		"title": "Semen Tiga Roda 50kg",
		"link":  "https://www.tokopedia.com/toko/semen-50kg",
		"shop":  "Toko Bangunan Jaya",
		"city":  "Denpasar",
		"price": "Rp72.500",
		"sold":  "1rb+ terjual",
	})

	assert.Equal(t, "Semen Tiga Roda 50kg", p.Name)
	assert.Equal(t, "https://www.tokopedia.com/toko/semen-50kg", p.URL)
	assert.Equal(t, "Toko Bangunan Jaya", p.SellerName)
	assert.Equal(t, "Denpasar", p.SellerLocation)
	assert.Equal(t, model.SellerTierRegular, p.SellerTier)
	assert.Equal(t, int64(72500), p.PriceIDR)
	assert.Equal(t, int64(1000), p.SoldCount)
}

func TestMapListingSellerFieldFallback(t *testing.T) {
	p := MapListing(RawListing{"seller": "CV Sumber Makmur"})
	assert.Equal(t, "CV Sumber Makmur", p.SellerName)
}

func TestAvailable(t *testing.T) {
	assert.True(t, Available(RawListing{}, 0), "missing stock passes")
	assert.True(t, Available(RawListing{"stock": float64(5)}, 0))
	assert.False(t, Available(RawListing{"stock": float64(0)}, 0))
	assert.False(t, Available(RawListing{"stockCount": float64(3)}, 10), "insufficient for quantity")
	assert.True(t, Available(RawListing{"stock": float64(20)}, 10))
	assert.False(t, Available(RawListing{"status": "inactive"}, 0))
	assert.True(t, Available(RawListing{"status": "Active"}, 0))
}

func TestMapAvailableFiltersBeforeMapping(t *testing.T) {
	raws := []RawListing{
		{"title": "A", "price": float64(1000), "stock": float64(0)},
		{"title": "B", "price": float64(2000), "stock": float64(50)},
		{"title": "C", "price": float64(3000), "status": "sold_out"},
	}
	products := MapAvailable(raws, 10)
	assert.Len(t, products, 1)
	assert.Equal(t, "B", products[0].Name)
}

package scrape

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cassidypignatello/bangun/internal/marketplace"
	"github.com/cassidypignatello/bangun/internal/model"
)

// MockScraper produces deterministic synthetic listings for development and
// tests without an Apify token. Prices derive from a hash of the query so
// the same material always quotes the same, and decisions built from it are
// labeled mock_data so they are never mistaken for market observations.
type MockScraper struct{}

func NewMockScraper() *MockScraper { return &MockScraper{} }

var titleCaser = cases.Title(language.Indonesian)

func (m *MockScraper) Source() model.PriceSource {
	return model.SourceMockData
}

var mockSellers = []struct {
	name     string
	location string
	tier     string
	rating   float64
	sold     int64
}{
	{"Toko Bangunan Jaya", "Denpasar", "regular", 4.8, 1200},
	{"CV Sumber Makmur", "Surabaya", "power_merchant", 4.6, 850},
	{"Mitra Konstruksi Official", "Jakarta Barat", "official_store", 4.9, 5400},
	{"UD Karya Abadi", "Badung", "regular", 4.4, 320},
	{"Toko Material Murah", "Bandung", "regular", 4.2, 95},
}

func (m *MockScraper) Search(_ context.Context, query string, maxResults int) ([]marketplace.RawListing, error) {
	if maxResults <= 0 || maxResults > len(mockSellers) {
		maxResults = len(mockSellers)
	}

	base := mockBasePrice(query)
	listings := make([]marketplace.RawListing, 0, maxResults)
	for i := 0; i < maxResults; i++ {
		seller := mockSellers[i]
		// Spread prices around the base so median and outlier logic have
		// something to chew on.
		price := base + int64(i-2)*(base/20)
		listings = append(listings, marketplace.RawListing{
			"title": fmt.Sprintf("%s - %s", titleCaser.String(query), seller.name),
			"price": float64(price),
			"sold":  float64(seller.sold),
			"shop": map[string]any{
				"name":     seller.name,
				"location": seller.location,
				"badge":    seller.tier,
			},
			"rating": seller.rating,
			"url":    fmt.Sprintf("https://www.tokopedia.com/mock/%d", i),
			"stock":  float64(1000),
		})
	}
	return listings, nil
}

// mockBasePrice maps a query onto a stable price between 10k and 500k IDR.
func mockBasePrice(query string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	return 10000 + int64(h.Sum32()%490)*1000
}

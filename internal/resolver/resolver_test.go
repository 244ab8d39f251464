package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassidypignatello/bangun/internal/marketplace"
	"github.com/cassidypignatello/bangun/internal/model"
	"github.com/cassidypignatello/bangun/internal/pricecache"
	"github.com/cassidypignatello/bangun/internal/textnorm"
)

type fakeStore struct {
	record     *model.PriceRecord
	candidates []model.PriceRecord
	findErr    error
	searchErr  error
	upserted   []*model.PriceRecord
}

func (f *fakeStore) FindPriceRecord(context.Context, string) (*model.PriceRecord, error) {
	return f.record, f.findErr
}

func (f *fakeStore) SearchMaterials(context.Context, string, int) ([]model.PriceRecord, error) {
	return f.candidates, f.searchErr
}

func (f *fakeStore) UpsertPriceRecord(_ context.Context, rec *model.PriceRecord) (*model.PriceRecord, error) {
	f.upserted = append(f.upserted, rec)
	return rec, nil
}

func (f *fakeStore) StaleMaterials(context.Context, time.Duration, int) ([]model.PriceRecord, error) {
	return nil, nil
}

func (f *fakeStore) SaveProject(context.Context, *model.Project) error { return nil }
func (f *fakeStore) GetProject(context.Context, string) (*model.Project, error) {
	return nil, nil
}
func (f *fakeStore) UpdateProjectStatus(context.Context, string, model.ProjectStatus) error {
	return nil
}
func (f *fakeStore) UpdateProjectProgress(context.Context, string, model.Progress) error {
	return nil
}
func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }

// fakeScraper serves canned listings per query and records the queries it saw.
type fakeScraper struct {
	byQuery map[string][]marketplace.RawListing
	err     error
	queries []string
}

func (f *fakeScraper) Search(_ context.Context, query string, _ int) ([]marketplace.RawListing, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.byQuery[query], nil
}

func (f *fakeScraper) Source() model.PriceSource { return model.SourceTokopedia }

type fakeEnhancer struct {
	term string
	err  error
}

func (f *fakeEnhancer) Enhance(context.Context, string) (string, error) {
	return f.term, f.err
}

func newResolver(t *testing.T, st *fakeStore, sc *fakeScraper, enh TermEnhancer) *Resolver {
	t.Helper()
	table, err := LoadFallbackTable()
	require.NoError(t, err)
	return New(st, pricecache.New(st, sc), enh, table)
}

func semenListings() map[string][]marketplace.RawListing {
	return map[string][]marketplace.RawListing{
		"Semen Portland 50kg": {
			{"title": "Semen A", "price": float64(80000), "rating": 4.8, "sold": float64(500)},
			{"title": "Semen B", "price": float64(85000), "rating": 4.5, "sold": float64(200)},
			{"title": "Semen C", "price": float64(90000), "rating": 4.7, "sold": float64(300)},
		},
	}
}

func TestResolveCachedExactMatch(t *testing.T) {
	st := &fakeStore{record: &model.PriceRecord{
		NormalizedName: textnorm.Normalize("Semen Portland 50kg"),
		NameID:         "Semen Portland 50kg",
		PriceAvg:       85000,
		UpdatedAt:      time.Now().UTC().Add(-time.Hour),
		ProductURL:     "https://www.tokopedia.com/p/1",
	}}
	r := newResolver(t, st, &fakeScraper{}, nil)

	d := r.Resolve(context.Background(), model.MaterialRequest{
		Name: "Semen Portland 50kg", Quantity: 5, Unit: "sak",
	})

	assert.Equal(t, model.SourceCached, d.Source)
	assert.Equal(t, 1.0, d.Confidence)
	assert.Equal(t, int64(85000), d.UnitPriceIDR)
	assert.Equal(t, int64(425000), d.TotalPriceIDR)
	assert.Equal(t, "https://www.tokopedia.com/p/1", d.MarketplaceURL)
}

func TestResolveStaleRecordIsNotCached(t *testing.T) {
	st := &fakeStore{record: &model.PriceRecord{
		NormalizedName: textnorm.Normalize("Semen Portland 50kg"),
		PriceAvg:       85000,
		UpdatedAt:      time.Now().UTC().Add(-8 * 24 * time.Hour),
	}}
	sc := &fakeScraper{byQuery: semenListings()}
	r := newResolver(t, st, sc, nil)

	d := r.Resolve(context.Background(), model.MaterialRequest{
		Name: "Semen Portland 50kg", Quantity: 1, Unit: "sak",
	})

	assert.Equal(t, model.SourceTokopedia, d.Source)
}

func TestResolveHistoricalMatch(t *testing.T) {
	st := &fakeStore{candidates: []model.PriceRecord{
		{NameID: "Semen Portland 50 kg", PriceAvg: 82000, ProductURL: "https://www.tokopedia.com/p/2"},
	}}
	r := newResolver(t, st, &fakeScraper{}, nil)

	d := r.Resolve(context.Background(), model.MaterialRequest{
		Name: "Semen Portland 50kg", Quantity: 2, Unit: "sak",
	})

	assert.Equal(t, model.SourceHistorical, d.Source)
	assert.Greater(t, d.Confidence, 0.95)
	assert.Equal(t, int64(82000), d.UnitPriceIDR)
	assert.Equal(t, int64(164000), d.TotalPriceIDR)
}

func TestResolveHistoricalFuzzyMatch(t *testing.T) {
	st := &fakeStore{candidates: []model.PriceRecord{
		{NameID: "Semen Portland 40kg", PriceAvg: 70000},
	}}
	r := newResolver(t, st, &fakeScraper{}, nil)

	d := r.Resolve(context.Background(), model.MaterialRequest{
		Name: "Semen Portland 50kg", Quantity: 1, Unit: "sak",
	})

	assert.Equal(t, model.SourceHistoricalFuzzy, d.Source)
	assert.Greater(t, d.Confidence, 0.90)
	assert.Less(t, d.Confidence, 0.95)
}

func TestResolveHistoricalIgnoresUnpricedRecords(t *testing.T) {
	st := &fakeStore{candidates: []model.PriceRecord{
		{NameID: "Semen Portland 50kg", PriceAvg: 0},
	}}
	sc := &fakeScraper{byQuery: semenListings()}
	r := newResolver(t, st, sc, nil)

	d := r.Resolve(context.Background(), model.MaterialRequest{
		Name: "Semen Portland 50kg", Quantity: 1, Unit: "sak",
	})

	assert.Equal(t, model.SourceTokopedia, d.Source)
}

func TestResolveLiveMedianOfSurvivors(t *testing.T) {
	sc := &fakeScraper{byQuery: semenListings()}
	r := newResolver(t, &fakeStore{}, sc, nil)

	d := r.Resolve(context.Background(), model.MaterialRequest{
		Name: "Semen Portland 50kg", Quantity: 2, Unit: "sak",
	})

	assert.Equal(t, model.SourceTokopedia, d.Source)
	assert.Equal(t, int64(85000), d.UnitPriceIDR)
	assert.Equal(t, int64(170000), d.TotalPriceIDR)
	assert.Equal(t, 3, d.ProductsAnalyzed)
	assert.Equal(t, 3, d.ProductsQualified)
	assert.InDelta(t, 0.75+3*0.03, d.Confidence, 1e-9)
	assert.NotEmpty(t, d.MarketplaceURL+d.MaterialName)
}

func TestResolveLiveConfidenceBonusCapped(t *testing.T) {
	listings := make([]marketplace.RawListing, 0, 8)
	for i := 0; i < 8; i++ {
		listings = append(listings, marketplace.RawListing{
			"title": "Semen", "price": float64(85000), "rating": 4.8, "sold": float64(500),
		})
	}
	sc := &fakeScraper{byQuery: map[string][]marketplace.RawListing{"Semen": listings}}
	r := newResolver(t, &fakeStore{}, sc, nil)

	d := r.Resolve(context.Background(), model.MaterialRequest{Name: "Semen", Quantity: 1, Unit: "sak"})

	// Survivors cap at 5, so the bonus caps at 0.15.
	assert.InDelta(t, 0.90, d.Confidence, 1e-9)
	assert.Equal(t, 5, d.ProductsQualified)
}

func TestResolveRetriesWithSimplifiedTerm(t *testing.T) {
	sc := &fakeScraper{byQuery: map[string][]marketplace.RawListing{
		"waterproofing": {
			{"title": "Aquaproof 1kg", "price": float64(65000), "rating": 4.9, "sold": float64(1000)},
		},
	}}
	r := newResolver(t, &fakeStore{}, sc, nil)

	d := r.Resolve(context.Background(), model.MaterialRequest{
		Name: "Membran Waterproofing Bitumen 1mm", Quantity: 3, Unit: "m2", Category: "finishing",
	})

	require.Equal(t, []string{"Membran Waterproofing Bitumen 1mm", "waterproofing"}, sc.queries)
	assert.Equal(t, model.SourceTokopedia, d.Source)
	assert.Equal(t, int64(65000), d.UnitPriceIDR)
}

func TestResolveEstimatedFallback(t *testing.T) {
	sc := &fakeScraper{err: eris.New("actor quota exceeded")}
	r := newResolver(t, &fakeStore{}, sc, nil)

	d := r.Resolve(context.Background(), model.MaterialRequest{
		Name: "Pipa PVC 4 inch", Quantity: 10, Unit: "meter", Category: "plumbing",
	})

	assert.Equal(t, model.SourceEstimated, d.Source)
	assert.Equal(t, 0.3, d.Confidence)
	assert.Equal(t, int64(25000), d.UnitPriceIDR)
	assert.Equal(t, int64(250000), d.TotalPriceIDR)
	assert.Empty(t, d.MarketplaceURL)
}

func TestResolveUsesEnhancedTerm(t *testing.T) {
	sc := &fakeScraper{byQuery: map[string][]marketplace.RawListing{
		"Keramik 40x40": {
			{"title": "Keramik 40x40", "price": float64(95000), "rating": 4.6, "sold": float64(800)},
		},
	}}
	r := newResolver(t, &fakeStore{}, sc, &fakeEnhancer{term: "Keramik 40x40"})

	d := r.Resolve(context.Background(), model.MaterialRequest{
		Name: "Ceramic Tiles 40x40cm Grade A", Quantity: 1, Unit: "m2",
	})

	require.NotEmpty(t, sc.queries)
	assert.Equal(t, "Keramik 40x40", sc.queries[0])
	assert.Equal(t, model.SourceTokopedia, d.Source)
}

func TestResolveEnhancerFailureFallsBackToName(t *testing.T) {
	sc := &fakeScraper{byQuery: semenListings()}
	r := newResolver(t, &fakeStore{}, sc, &fakeEnhancer{err: eris.New("api key invalid")})

	d := r.Resolve(context.Background(), model.MaterialRequest{
		Name: "Semen Portland 50kg", Quantity: 1, Unit: "sak",
	})

	require.NotEmpty(t, sc.queries)
	assert.Equal(t, "Semen Portland 50kg", sc.queries[0])
	assert.Equal(t, model.SourceTokopedia, d.Source)
}

func TestBestSellerPicksWinner(t *testing.T) {
	sc := &fakeScraper{byQuery: map[string][]marketplace.RawListing{
		"Semen": {
			{"title": "Cheap well-rated", "price": float64(78000), "rating": 4.9, "sold": float64(5000), "stock": float64(100)},
			{"title": "Expensive", "price": float64(95000), "rating": 4.1, "sold": float64(50), "stock": float64(100)},
		},
	}}
	r := newResolver(t, &fakeStore{}, sc, nil)

	winner, err := r.BestSeller(context.Background(), "Semen", 10, false)
	require.NoError(t, err)
	assert.Equal(t, "Cheap well-rated", winner.Product.Name)
	assert.Greater(t, winner.TotalScore, 0.5)
}

func TestBestSellerNoPricedListings(t *testing.T) {
	sc := &fakeScraper{byQuery: map[string][]marketplace.RawListing{
		"Semen": {{"title": "No price", "stock": float64(10)}},
	}}
	r := newResolver(t, &fakeStore{}, sc, nil)

	_, err := r.BestSeller(context.Background(), "Semen", 0, false)
	assert.Error(t, err)
}

func TestFallbackTableEstimates(t *testing.T) {
	table, err := LoadFallbackTable()
	require.NoError(t, err)

	tests := []struct {
		category, unit string
		want           int64
	}{
		{"structural", "m3", 2000000},
		{"finishing", "liter", 100000},
		{"electrical", "set", 200000},
		{"hvac", "pcs", 500000},
		{"plumbing", "nonsense-unit", 100000}, // falls back to pcs within category
		{"unknown-category", "kg", 25000},     // falls back to miscellaneous
		{"", "", 50000},
		{"Structural", "KG", 15000}, // case-insensitive
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, table.Estimate(tt.category, tt.unit),
			"category=%q unit=%q", tt.category, tt.unit)
	}
}

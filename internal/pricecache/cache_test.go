package pricecache

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassidypignatello/bangun/internal/marketplace"
	"github.com/cassidypignatello/bangun/internal/model"
)

type fakeStore struct {
	record   *model.PriceRecord
	findErr  error
	upserted []*model.PriceRecord
}

func (f *fakeStore) FindPriceRecord(context.Context, string) (*model.PriceRecord, error) {
	return f.record, f.findErr
}

func (f *fakeStore) SearchMaterials(context.Context, string, int) ([]model.PriceRecord, error) {
	return nil, nil
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

type fakeScraper struct {
	listings []marketplace.RawListing
	err      error
	calls    int
}

func (f *fakeScraper) Search(context.Context, string, int) ([]marketplace.RawListing, error) {
	f.calls++
	return f.listings, f.err
}

func (f *fakeScraper) Source() model.PriceSource { return model.SourceTokopedia }

func liveListings() []marketplace.RawListing {
	return []marketplace.RawListing{
		{"title": "Semen A", "price": float64(80000), "rating": 4.8, "sold": float64(500)},
		{"title": "Semen B", "price": float64(85000), "rating": 4.5, "sold": float64(200)},
	}
}

func freshRecord() *model.PriceRecord {
	return &model.PriceRecord{
		ID:          "mat-1",
		NameID:      "Semen Portland 50kg",
		PriceMin:    75000,
		PriceMax:    95000,
		PriceAvg:    85000,
		PriceMedian: 84000,
		SampleSize:  5,
		UpdatedAt:   time.Now().UTC().Add(-time.Hour),
		ProductURL:  "https://www.tokopedia.com/p/1",
	}
}

func TestFetchPricesTier2Hit(t *testing.T) {
	st := &fakeStore{record: freshRecord()}
	sc := &fakeScraper{listings: liveListings()}
	c := New(st, sc)

	products, err := c.FetchPrices(context.Background(), "semen portland 50kg", 5)
	require.NoError(t, err)
	require.Len(t, products, 1, "Tier-2 hits return one aggregated listing")

	p := products[0]
	assert.True(t, p.Cached)
	assert.Equal(t, CachedSellerName, p.SellerName)
	assert.Equal(t, int64(85000), p.PriceIDR)
	require.NotNil(t, p.PriceRange)
	assert.Equal(t, int64(84000), p.PriceRange.Median)

	assert.Zero(t, sc.calls, "a fresh record must not trigger a scrape")
}

func TestFetchPricesTier1WarmedByTier2(t *testing.T) {
	st := &fakeStore{record: freshRecord()}
	sc := &fakeScraper{}
	c := New(st, sc)

	first, err := c.FetchPrices(context.Background(), "semen", 5)
	require.NoError(t, err)

	// Invalidate Tier 2; the warmed Tier 1 must still serve.
	st.record = nil
	st.findErr = eris.New("db down")
	second, err := c.FetchPrices(context.Background(), "semen", 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFetchPricesWordOrderVariantsShareTier1(t *testing.T) {
	st := &fakeStore{}
	sc := &fakeScraper{listings: liveListings()}
	c := New(st, sc)

	first, err := c.FetchPrices(context.Background(), "Semen Portland 50kg", 5)
	require.NoError(t, err)
	second, err := c.FetchPrices(context.Background(), "Portland Semen 50kg", 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, sc.calls, "word-order variants share one Tier-1 entry")
}

func TestFetchPricesStaleRecordScrapes(t *testing.T) {
	stale := freshRecord()
	stale.UpdatedAt = time.Now().UTC().Add(-8 * 24 * time.Hour)
	st := &fakeStore{record: stale}
	sc := &fakeScraper{listings: liveListings()}
	c := New(st, sc)

	products, err := c.FetchPrices(context.Background(), "semen", 5)
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, 1, sc.calls)
	assert.False(t, products[0].Cached)

	// A live scrape refreshes Tier 2 best-effort.
	require.Len(t, st.upserted, 1)
	assert.Equal(t, 2, st.upserted[0].SampleSize)
}

func TestFetchPricesStoreErrorFallsThrough(t *testing.T) {
	st := &fakeStore{findErr: eris.New("connection refused")}
	sc := &fakeScraper{listings: liveListings()}
	c := New(st, sc)

	products, err := c.FetchPrices(context.Background(), "semen", 5)
	require.NoError(t, err, "a broken store must not block live resolution")
	assert.Len(t, products, 2)
}

func TestFetchPricesScrapeErrorPropagates(t *testing.T) {
	st := &fakeStore{}
	sc := &fakeScraper{err: eris.New("actor timeout")}
	c := New(st, sc)

	_, err := c.FetchPrices(context.Background(), "semen", 5)
	assert.Error(t, err)
}

func TestBestSellerNamespaceIsolated(t *testing.T) {
	st := &fakeStore{}
	sc := &fakeScraper{listings: liveListings()}
	c := New(st, sc)

	_, err := c.FetchPrices(context.Background(), "semen", 5)
	require.NoError(t, err)
	_, err = c.FetchBestSellerCandidates(context.Background(), "semen", 5, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, sc.calls, "median and best-seller flows cache separately")
}

func TestBestSellerFiltersUnavailable(t *testing.T) {
	st := &fakeStore{}
	sc := &fakeScraper{listings: []marketplace.RawListing{
		{"title": "In stock", "price": float64(80000), "stock": float64(100)},
		{"title": "Out of stock", "price": float64(70000), "stock": float64(0)},
	}}
	c := New(st, sc)

	products, err := c.FetchBestSellerCandidates(context.Background(), "semen", 5, 10)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "In stock", products[0].Name)
}

func TestBestSellerKeepsAllWhenNoneAvailable(t *testing.T) {
	st := &fakeStore{}
	sc := &fakeScraper{listings: []marketplace.RawListing{
		{"title": "Low stock A", "price": float64(80000), "stock": float64(2)},
		{"title": "Low stock B", "price": float64(70000), "stock": float64(1)},
	}}
	c := New(st, sc)

	// Nothing covers the required quantity; the price signal is kept anyway.
	products, err := c.FetchBestSellerCandidates(context.Background(), "semen", 5, 50)
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

package bom

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassidypignatello/bangun/internal/marketplace"
	"github.com/cassidypignatello/bangun/internal/model"
	"github.com/cassidypignatello/bangun/internal/pricecache"
	"github.com/cassidypignatello/bangun/internal/resolver"
)

type nilStore struct{}

func (nilStore) FindPriceRecord(context.Context, string) (*model.PriceRecord, error) {
	return nil, nil
}
func (nilStore) SearchMaterials(context.Context, string, int) ([]model.PriceRecord, error) {
	return nil, nil
}
func (nilStore) UpsertPriceRecord(_ context.Context, rec *model.PriceRecord) (*model.PriceRecord, error) {
	return rec, nil
}
func (nilStore) StaleMaterials(context.Context, time.Duration, int) ([]model.PriceRecord, error) {
	return nil, nil
}
func (nilStore) SaveProject(context.Context, *model.Project) error            { return nil }
func (nilStore) GetProject(context.Context, string) (*model.Project, error)   { return nil, nil }
func (nilStore) UpdateProjectStatus(context.Context, string, model.ProjectStatus) error {
	return nil
}
func (nilStore) UpdateProjectProgress(context.Context, string, model.Progress) error {
	return nil
}
func (nilStore) Migrate(context.Context) error { return nil }
func (nilStore) Close() error                  { return nil }

type emptyScraper struct{}

func (emptyScraper) Search(context.Context, string, int) ([]marketplace.RawListing, error) {
	return nil, nil
}
func (emptyScraper) Source() model.PriceSource { return model.SourceTokopedia }

// estimateOnlyEnricher resolves everything through the category table, which
// makes orchestration behavior deterministic.
func estimateOnlyEnricher(t *testing.T, laborPct float64) *Enricher {
	t.Helper()
	table, err := resolver.LoadFallbackTable()
	require.NoError(t, err)
	r := resolver.New(nilStore{}, pricecache.New(nilStore{}, emptyScraper{}), nil, table)
	return NewEnricher(r, laborPct)
}

type progressEvent struct {
	current, total int
	name, source   string
}

func testMaterials() []model.MaterialRequest {
	return []model.MaterialRequest{
		{Name: "Pipa PVC 4 inch", Quantity: 10, Unit: "meter", Category: "plumbing"},
		{Name: "Kabel NYM 3x2.5", EnglishName: "Electrical Cable", Quantity: 50, Unit: "meter", Category: "electrical"},
	}
}

func TestEnrichAllProgressSequence(t *testing.T) {
	e := estimateOnlyEnricher(t, 0)

	var events []progressEvent
	decisions, err := e.EnrichAll(context.Background(), testMaterials(), func(current, total int, name, source string) {
		events = append(events, progressEvent{current, total, name, source})
	})
	require.NoError(t, err)
	require.Len(t, decisions, 2)

	require.Len(t, events, 4, "two events per item")
	assert.Equal(t, progressEvent{1, 2, "Pipa PVC 4 inch", StatusSearching}, events[0])
	assert.Equal(t, progressEvent{1, 2, "Pipa PVC 4 inch", "estimated"}, events[1])
	assert.Equal(t, progressEvent{2, 2, "Electrical Cable", StatusSearching}, events[2])
	assert.Equal(t, progressEvent{2, 2, "Electrical Cable", "estimated"}, events[3])
}

func TestEnrichAllDecisionsDiscloseSource(t *testing.T) {
	e := estimateOnlyEnricher(t, 0)

	decisions, err := e.EnrichAll(context.Background(), testMaterials(), nil)
	require.NoError(t, err)

	for _, d := range decisions {
		assert.Equal(t, model.SourceEstimated, d.Source)
		assert.Equal(t, 0.3, d.Confidence)
		assert.Positive(t, d.UnitPriceIDR)
	}
	assert.Equal(t, int64(250000), decisions[0].TotalPriceIDR) // 10 × 25000
	assert.Equal(t, int64(750000), decisions[1].TotalPriceIDR) // 50 × 15000
}

func TestEnrichAllCancelledBetweenItems(t *testing.T) {
	e := estimateOnlyEnricher(t, 0)
	ctx, cancel := context.WithCancel(context.Background())

	decisions, err := e.EnrichAll(ctx, testMaterials(), func(current, total int, name, source string) {
		if source != StatusSearching {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, decisions, 1, "cancellation takes effect between items")
}

func TestEnrichAllPanickingSinkIsContained(t *testing.T) {
	e := estimateOnlyEnricher(t, 0)

	decisions, err := e.EnrichAll(context.Background(), testMaterials(), func(int, int, string, string) {
		panic("broken progress bar")
	})
	require.NoError(t, err)
	assert.Len(t, decisions, 2)
}

func TestSummarize(t *testing.T) {
	e := estimateOnlyEnricher(t, 0.30)

	s := e.Summarize([]model.PriceDecision{
		{TotalPriceIDR: 600000},
		{TotalPriceIDR: 400000},
	})

	assert.Equal(t, int64(1000000), s.MaterialTotal)
	assert.Equal(t, int64(300000), s.LaborTotal)
	assert.Equal(t, int64(1300000), s.GrandTotal)
}

func TestSummarizeEmpty(t *testing.T) {
	e := estimateOnlyEnricher(t, 0)
	s := e.Summarize(nil)
	assert.Zero(t, s.GrandTotal)
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassidypignatello/bangun/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteUpsertReconcilesWordOrderVariant(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	first := BuildPriceRecord("Semen Portland 50kg", []model.NormalizedProduct{
		{Name: "Semen Portland 50kg", PriceIDR: 82000, Rating: 4.6, SoldCount: 150, URL: "https://t/1"},
	}, "semen 50kg")
	require.NotNil(t, first)
	saved, err := s.UpsertPriceRecord(ctx, first)
	require.NoError(t, err)

	// A re-scrape under a word-order variant carries the same normalized
	// name and must update the cached row, not insert a second one.
	variant := BuildPriceRecord("Portland Semen 50kg", []model.NormalizedProduct{
		{Name: "Portland Semen 50kg", PriceIDR: 84000, Rating: 4.5, SoldCount: 90, URL: "https://t/2"},
	}, "semen 50kg")
	require.NotNil(t, variant)
	require.Equal(t, first.NormalizedName, variant.NormalizedName)

	merged, err := s.UpsertPriceRecord(ctx, variant)
	require.NoError(t, err)

	assert.Equal(t, saved.ID, merged.ID)
	assert.Equal(t, 84000.0, merged.PriceAvg)
	assert.Contains(t, merged.Aliases, "semen portland 50kg")
	assert.Contains(t, merged.Aliases, "portland semen 50kg")

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM materials WHERE normalized_name = ?`,
		first.NormalizedName,
	).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLiteFindPriceRecordWordOrderVariant(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rec := BuildPriceRecord("Keramik Lantai 40x40", []model.NormalizedProduct{
		{Name: "Keramik Lantai 40x40", PriceIDR: 90000, Rating: 4.8, SoldCount: 400, URL: "https://t/1"},
	}, "keramik 40x40")
	require.NotNil(t, rec)
	_, err := s.UpsertPriceRecord(ctx, rec)
	require.NoError(t, err)

	found, err := s.FindPriceRecord(ctx, "Lantai Keramik 40x40")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, rec.NormalizedName, found.NormalizedName)
}

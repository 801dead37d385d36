package history

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bagelworks/meanvar/internal/database"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())

	return NewRepository(db, zerolog.Nop())
}

func TestRepository_SaveAndListSymbols(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.SavePrices("BBB", []PricePoint{{Date: "2025-01-02", Close: 50}}))
	require.NoError(t, repo.SavePrices("AAA", []PricePoint{{Date: "2025-01-02", Close: 100}}))

	symbols, err := repo.Symbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, symbols)
}

func TestRepository_SavePrices_Upserts(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.SavePrices("AAA", []PricePoint{{Date: "2025-01-02", Close: 100}}))
	require.NoError(t, repo.SavePrices("AAA", []PricePoint{{Date: "2025-01-02", Close: 101}}))

	closes, err := repo.closesByDate("AAA")
	require.NoError(t, err)
	require.Len(t, closes, 1)
	assert.Equal(t, 101.0, closes["2025-01-02"])
}

func TestRepository_SavePrices_Validation(t *testing.T) {
	repo := newTestRepository(t)

	assert.Error(t, repo.SavePrices("", []PricePoint{{Date: "2025-01-02", Close: 1}}))
	assert.Error(t, repo.SavePrices("AAA", nil))
	assert.Error(t, repo.SavePrices("AAA", []PricePoint{{Close: 1}}))
}

func TestRepository_ReturnsSample(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.SavePrices("AAA", []PricePoint{
		{Date: "2025-01-02", Close: 100},
		{Date: "2025-01-03", Close: 110},
		{Date: "2025-01-06", Close: 99},
	}))
	require.NoError(t, repo.SavePrices("BBB", []PricePoint{
		{Date: "2025-01-02", Close: 50},
		{Date: "2025-01-03", Close: 51},
		{Date: "2025-01-06", Close: 54},
	}))

	sample, err := repo.ReturnsSample([]string{"AAA", "BBB"}, 252)
	require.NoError(t, err)
	require.Len(t, sample, 2)

	assert.InDelta(t, 0.10, sample[0][0], 1e-12)
	assert.InDelta(t, -0.10, sample[1][0], 1e-12)
	assert.InDelta(t, 0.02, sample[0][1], 1e-12)
	assert.InDelta(t, 54.0/51.0-1, sample[1][1], 1e-12)
}

func TestRepository_ReturnsSample_AlignsOnSharedDates(t *testing.T) {
	repo := newTestRepository(t)

	// BBB is missing 2025-01-03; that date must drop out of the sample.
	require.NoError(t, repo.SavePrices("AAA", []PricePoint{
		{Date: "2025-01-02", Close: 100},
		{Date: "2025-01-03", Close: 105},
		{Date: "2025-01-06", Close: 110},
		{Date: "2025-01-07", Close: 99},
	}))
	require.NoError(t, repo.SavePrices("BBB", []PricePoint{
		{Date: "2025-01-02", Close: 50},
		{Date: "2025-01-06", Close: 52},
		{Date: "2025-01-07", Close: 51},
	}))

	sample, err := repo.ReturnsSample([]string{"AAA", "BBB"}, 252)
	require.NoError(t, err)
	require.Len(t, sample, 2, "three shared dates give two returns")

	assert.InDelta(t, 0.10, sample[0][0], 1e-12)
	assert.InDelta(t, 0.04, sample[0][1], 1e-12)
}

func TestRepository_ReturnsSample_LookbackWindow(t *testing.T) {
	repo := newTestRepository(t)

	points := []PricePoint{
		{Date: "2025-01-02", Close: 100},
		{Date: "2025-01-03", Close: 101},
		{Date: "2025-01-06", Close: 102},
		{Date: "2025-01-07", Close: 103},
		{Date: "2025-01-08", Close: 104},
	}
	require.NoError(t, repo.SavePrices("AAA", points))

	sample, err := repo.ReturnsSample([]string{"AAA"}, 2)
	require.NoError(t, err)
	assert.Len(t, sample, 2, "lookback of 2 days keeps 3 prices, 2 returns")

	// Most recent window: 103→104.
	assert.InDelta(t, 104.0/103.0-1, sample[1][0], 1e-12)
}

func TestRepository_ReturnsSample_Errors(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.ReturnsSample(nil, 252)
	assert.Error(t, err)

	_, err = repo.ReturnsSample([]string{"MISSING"}, 252)
	assert.Error(t, err)

	// Too few shared dates for a covariance estimate.
	require.NoError(t, repo.SavePrices("AAA", []PricePoint{
		{Date: "2025-01-02", Close: 100},
		{Date: "2025-01-03", Close: 101},
	}))
	_, err = repo.ReturnsSample([]string{"AAA"}, 252)
	assert.Error(t, err)
}

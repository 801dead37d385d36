package optimization

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bagelworks/meanvar/internal/database"
	"github.com/bagelworks/meanvar/internal/history"
	"github.com/bagelworks/meanvar/pkg/meanvar"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(nil, Config{LookbackDays: 252}, zerolog.Nop())
}

func sampleReturns() [][]float64 {
	return [][]float64{
		{0.012, 0.025, -0.008},
		{-0.004, 0.013, 0.021},
		{0.009, -0.017, 0.005},
		{0.023, 0.008, -0.012},
		{-0.015, 0.019, 0.017},
		{0.007, -0.006, 0.009},
		{0.018, 0.011, -0.003},
		{-0.002, 0.004, 0.014},
	}
}

func sumWeights(weights map[string]float64) float64 {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	return sum
}

func TestService_MVPFromReturns(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.MVP(OptimizeRequest{
		Symbols: []string{"AAA", "BBB", "CCC"},
		Returns: sampleReturns(),
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, StrategyMVP, result.Strategy)
	assert.InDelta(t, 1.0, sumWeights(result.Weights), 1e-9)

	require.NotNil(t, result.Metrics)
	assert.NotNil(t, result.Metrics.ExpectedReturn)
	assert.Greater(t, result.Metrics.Variance, 0.0)
	assert.NotNil(t, result.Metrics.AnnualizedVolatility)

	// The solve is cached as the last result.
	assert.Equal(t, result, svc.LastResult())
}

func TestService_MVPFromCovariance(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.MVP(OptimizeRequest{
		Cov: [][]float64{
			{0.04, 0.00},
			{0.00, 0.09},
		},
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.6923, result.Weights["asset1"], 1e-4)
	assert.InDelta(t, 0.3077, result.Weights["asset2"], 1e-4)

	require.NotNil(t, result.Metrics)
	assert.Nil(t, result.Metrics.ExpectedReturn, "no mu means no expected return")
	assert.Greater(t, result.Metrics.Variance, 0.0)
}

func TestService_MVPSingularCovariance(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.MVP(OptimizeRequest{
		Cov: [][]float64{
			{0.04, 0.04},
			{0.04, 0.04},
		},
	})

	var singular *meanvar.SingularMatrixError
	require.ErrorAs(t, err, &singular)
}

func TestService_FrontierFromMoments(t *testing.T) {
	svc := newTestService(t)
	target := 0.14

	result, err := svc.Frontier(OptimizeRequest{
		TargetReturn: &target,
		Symbols:      []string{"AAA", "BBB"},
		Mu:           []float64{0.10, 0.20},
		Cov: [][]float64{
			{0.04, 0.00},
			{0.00, 0.09},
		},
	})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, sumWeights(result.Weights), 1e-9)
	require.NotNil(t, result.Metrics.ExpectedReturn)
	assert.InDelta(t, target, *result.Metrics.ExpectedReturn, 1e-9)
}

func TestService_FrontierRequiresTarget(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Frontier(OptimizeRequest{Returns: sampleReturns()})

	var invalid *meanvar.InvalidInputError
	require.ErrorAs(t, err, &invalid)
}

func TestService_InputContract(t *testing.T) {
	svc := newTestService(t)

	var invalid *meanvar.InvalidInputError

	_, err := svc.MVP(OptimizeRequest{})
	require.ErrorAs(t, err, &invalid, "neither returns nor cov")

	_, err = svc.MVP(OptimizeRequest{
		Returns: sampleReturns(),
		Cov:     [][]float64{{0.04}},
	})
	require.ErrorAs(t, err, &invalid, "both returns and cov")

	target := 0.1
	_, err = svc.Frontier(OptimizeRequest{
		TargetReturn: &target,
		Cov:          [][]float64{{0.04}},
	})
	require.ErrorAs(t, err, &invalid, "frontier from moments needs mu")

	_, err = svc.MVP(OptimizeRequest{
		Mu: []float64{0.10},
		Cov: [][]float64{
			{0.04, 0.00},
			{0.00, 0.09},
		},
	})
	require.ErrorAs(t, err, &invalid, "mu shorter than cov")

	_, err = svc.MVP(OptimizeRequest{
		Mu: []float64{0.10, 0.20, 0.30},
		Cov: [][]float64{
			{0.04, 0.00},
			{0.00, 0.09},
		},
	})
	require.ErrorAs(t, err, &invalid, "mu longer than cov")
}

func TestService_SharpeConventionsAgree(t *testing.T) {
	svc := NewService(nil, Config{RiskFreeRate: 0.0252, LookbackDays: 252}, zerolog.Nop())

	result, err := svc.MVP(OptimizeRequest{
		Symbols: []string{"AAA", "BBB", "CCC"},
		Returns: sampleReturns(),
	})
	require.NoError(t, err)

	require.NotNil(t, result.Metrics.SharpeRatio)
	require.NotNil(t, result.Metrics.AnnualizedSharpe)

	// Both figures net the same de-annualized rate, so the annualized one
	// is the per-period one scaled by sqrt of the period count.
	assert.InDelta(t, *result.Metrics.SharpeRatio*math.Sqrt(252), *result.Metrics.AnnualizedSharpe, 1e-9)
}

func TestService_PortfolioMetricsDefaultsToEqualWeight(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.PortfolioMetrics(MetricsRequest{
		Symbols: []string{"AAA", "BBB", "CCC"},
		Returns: sampleReturns(),
	})
	require.NoError(t, err)

	assert.Equal(t, StrategyEqualWeight, result.Strategy)
	for _, w := range result.Weights {
		assert.InDelta(t, 1.0/3.0, w, 1e-12)
	}
}

func TestService_FromHistory(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	repo := history.NewRepository(db, zerolog.Nop())
	require.NoError(t, repo.SavePrices("AAA", []history.PricePoint{
		{Date: "2025-01-02", Close: 100},
		{Date: "2025-01-03", Close: 104},
		{Date: "2025-01-06", Close: 101},
		{Date: "2025-01-07", Close: 107},
		{Date: "2025-01-08", Close: 105},
	}))
	require.NoError(t, repo.SavePrices("BBB", []history.PricePoint{
		{Date: "2025-01-02", Close: 50},
		{Date: "2025-01-03", Close: 49},
		{Date: "2025-01-06", Close: 52},
		{Date: "2025-01-07", Close: 51},
		{Date: "2025-01-08", Close: 53},
	}))

	svc := NewService(repo, Config{LookbackDays: 252}, zerolog.Nop())

	// Empty symbol list solves over the full stored universe.
	result, err := svc.FromHistory(HistoryOptimizeRequest{})
	require.NoError(t, err)

	assert.Equal(t, StrategyMVP, result.Strategy)
	assert.ElementsMatch(t, []string{"AAA", "BBB"}, result.Symbols)
	assert.InDelta(t, 1.0, sumWeights(result.Weights), 1e-9)

	// RecomputeMVP resolves the same universe and refreshes the cache.
	recomputed, err := svc.RecomputeMVP()
	require.NoError(t, err)
	require.NotNil(t, recomputed)
	assert.Equal(t, recomputed, svc.LastResult())
}

func TestService_RecomputeMVPSkipsSmallUniverse(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	repo := history.NewRepository(db, zerolog.Nop())
	svc := NewService(repo, Config{}, zerolog.Nop())

	result, err := svc.RecomputeMVP()
	require.NoError(t, err)
	assert.Nil(t, result)
}

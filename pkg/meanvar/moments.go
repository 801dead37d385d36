package meanvar

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// MinObservations is the smallest sample length accepted by the moment
// estimators. A single observation has no covariance, so both estimators
// reject it to stay mutually consistent.
const MinObservations = 2

// MeanVector returns the per-asset arithmetic mean of a T×N returns sample,
// one row per observation and one column per asset.
func MeanVector(returns [][]float64) ([]float64, error) {
	cols, err := sampleColumns(returns)
	if err != nil {
		return nil, err
	}

	mu := make([]float64, len(cols))
	for i, col := range cols {
		mu[i] = stat.Mean(col, nil)
	}
	return mu, nil
}

// CovarianceMatrix returns the N×N sample covariance matrix of a T×N returns
// sample, using the unbiased (T−1) denominator. The result is symmetric by
// construction; collinear assets or T ≤ N samples produce a singular matrix,
// which is not trapped here and surfaces at inversion.
func CovarianceMatrix(returns [][]float64) ([][]float64, error) {
	cols, err := sampleColumns(returns)
	if err != nil {
		return nil, err
	}

	n := len(cols)
	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := stat.Covariance(cols[i], cols[j], nil)
			cov[i][j] = c
			cov[j][i] = c
		}
	}
	return cov, nil
}

// sampleColumns validates a T×N returns sample and transposes it into
// per-asset column slices.
func sampleColumns(returns [][]float64) ([][]float64, error) {
	t := len(returns)
	if t < MinObservations {
		return nil, &InvalidInputError{
			Reason: fmt.Sprintf("returns sample has %d observations, need at least %d", t, MinObservations),
		}
	}

	n := len(returns[0])
	if n < 1 {
		return nil, &InvalidInputError{Reason: "returns sample has no assets"}
	}
	for i, row := range returns {
		if len(row) != n {
			return nil, &InvalidInputError{
				Reason: fmt.Sprintf("returns sample is ragged: row %d has %d assets, expected %d", i, len(row), n),
			}
		}
	}

	cols := make([][]float64, n)
	for j := 0; j < n; j++ {
		col := make([]float64, t)
		for i := 0; i < t; i++ {
			col[i] = returns[i][j]
		}
		cols[j] = col
	}
	return cols, nil
}

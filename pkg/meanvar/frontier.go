package meanvar

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// degenerateTol scales the discriminant guard: |D| below this fraction of
// max(1, |B·C|) is treated as zero.
const degenerateTol = 1e-12

// frontierScalars holds the four scalar aggregates of the closed-form
// solution, all built from mu and the covariance inverse:
//
//	A = muᵀ·Σ⁻¹·1   B = muᵀ·Σ⁻¹·mu   C = 1ᵀ·Σ⁻¹·1   D = B·C − A²
type frontierScalars struct {
	a, b, c, d float64

	// sigmaOnes = Σ⁻¹·1 and sigmaMu = Σ⁻¹·mu are kept because the frontier
	// vectors reuse them.
	sigmaOnes *mat.VecDense
	sigmaMu   *mat.VecDense
}

// MVPWeights returns the minimum-variance portfolio weights Σ⁻¹·1 / C for an
// N×N covariance matrix. The MVP does not depend on expected returns at all.
// Weights sum to 1 and may be negative.
func MVPWeights(cov [][]float64) ([]float64, error) {
	covInv, n, err := invertCovariance(cov)
	if err != nil {
		return nil, err
	}

	ones := onesVector(n)
	var sigmaOnes mat.VecDense
	sigmaOnes.MulVec(covInv, ones)
	c := mat.Dot(ones, &sigmaOnes)

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = sigmaOnes.AtVec(i) / c
	}
	return weights, nil
}

// MVPWeightsFromReturns estimates the covariance matrix from a T×N returns
// sample and returns the minimum-variance portfolio weights.
func MVPWeightsFromReturns(returns [][]float64) ([]float64, error) {
	cov, err := CovarianceMatrix(returns)
	if err != nil {
		return nil, err
	}
	return MVPWeights(cov)
}

// OptimalWeights returns the efficient-frontier weights g + targetReturn·h
// for the given mean vector and covariance matrix. Any real target return is
// accepted; extreme targets simply produce large long/short positions.
func OptimalWeights(targetReturn float64, mu []float64, cov [][]float64) ([]float64, error) {
	n := len(mu)
	if n == 0 {
		return nil, &InvalidInputError{Reason: "mean vector is empty"}
	}
	if len(cov) != n {
		return nil, &InvalidInputError{
			Reason: fmt.Sprintf("covariance matrix has %d rows, mean vector has %d assets", len(cov), n),
		}
	}

	covInv, _, err := invertCovariance(cov)
	if err != nil {
		return nil, err
	}

	scalars, err := computeScalars(mu, covInv)
	if err != nil {
		return nil, err
	}
	g, h := frontierVectors(scalars)

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = g[i] + targetReturn*h[i]
	}
	return weights, nil
}

// OptimalWeightsFromReturns estimates mu and cov from a T×N returns sample
// and returns the efficient-frontier weights for the target return.
func OptimalWeightsFromReturns(targetReturn float64, returns [][]float64) ([]float64, error) {
	mu, err := MeanVector(returns)
	if err != nil {
		return nil, err
	}
	cov, err := CovarianceMatrix(returns)
	if err != nil {
		return nil, err
	}
	return OptimalWeights(targetReturn, mu, cov)
}

// invertCovariance computes the exact inverse of an N×N covariance matrix.
// A matrix that is singular, or ill-conditioned beyond gonum's
// mat.ConditionTolerance, yields a SingularMatrixError wrapping the
// underlying gonum error; inf/nan entries are never returned silently.
func invertCovariance(cov [][]float64) (*mat.Dense, int, error) {
	n := len(cov)
	if n == 0 {
		return nil, 0, &InvalidInputError{Reason: "covariance matrix is empty"}
	}
	for i, row := range cov {
		if len(row) != n {
			return nil, 0, &InvalidInputError{
				Reason: fmt.Sprintf("covariance matrix is not square: row %d has %d columns, expected %d", i, len(row), n),
			}
		}
	}

	sigma := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sigma.Set(i, j, cov[i][j])
		}
	}

	var inv mat.Dense
	if err := inv.Inverse(sigma); err != nil {
		return nil, 0, &SingularMatrixError{Err: err}
	}
	return &inv, n, nil
}

// computeScalars derives A, B, C and D from mu and the covariance inverse,
// rejecting a numerically zero discriminant before any division happens.
func computeScalars(mu []float64, covInv *mat.Dense) (frontierScalars, error) {
	n := len(mu)
	muVec := mat.NewVecDense(n, mu)
	ones := onesVector(n)

	var sigmaOnes, sigmaMu mat.VecDense
	sigmaOnes.MulVec(covInv, ones)
	sigmaMu.MulVec(covInv, muVec)

	s := frontierScalars{
		a:         mat.Dot(muVec, &sigmaOnes),
		b:         mat.Dot(muVec, &sigmaMu),
		c:         mat.Dot(ones, &sigmaOnes),
		sigmaOnes: &sigmaOnes,
		sigmaMu:   &sigmaMu,
	}
	s.d = s.b*s.c - s.a*s.a

	if math.Abs(s.d) <= degenerateTol*math.Max(1, math.Abs(s.b*s.c)) {
		return frontierScalars{}, &DegenerateFrontierError{D: s.d}
	}
	return s, nil
}

// frontierVectors computes the target-independent frontier vectors
//
//	g = (B·Σ⁻¹·1 − A·Σ⁻¹·mu) / D
//	h = (C·Σ⁻¹·mu − A·Σ⁻¹·1) / D
//
// The caller guarantees D is nonzero.
func frontierVectors(s frontierScalars) (g, h []float64) {
	n := s.sigmaOnes.Len()
	g = make([]float64, n)
	h = make([]float64, n)
	for i := 0; i < n; i++ {
		so := s.sigmaOnes.AtVec(i)
		sm := s.sigmaMu.AtVec(i)
		g[i] = (s.b*so - s.a*sm) / s.d
		h[i] = (s.c*sm - s.a*so) / s.d
	}
	return g, h
}

func onesVector(n int) *mat.VecDense {
	ones := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		ones.SetVec(i, 1)
	}
	return ones
}

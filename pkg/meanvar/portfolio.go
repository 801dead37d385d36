package meanvar

import (
	"fmt"
	"math"
)

// Portfolio is an immutable view over a returns sample and a weights vector.
// Moments are estimated once at construction; all accessors are read-only and
// return copies, so a Portfolio is safe to share between goroutines.
type Portfolio struct {
	symbols []string
	returns [][]float64
	weights []float64
	mu      []float64
	cov     [][]float64
}

// NewPortfolio builds a portfolio view from a T×N returns sample and an
// explicit weights vector. Symbols may be nil, in which case positional names
// are generated. The sample and weights are copied.
func NewPortfolio(symbols []string, returns [][]float64, weights []float64) (*Portfolio, error) {
	mu, err := MeanVector(returns)
	if err != nil {
		return nil, err
	}
	cov, err := CovarianceMatrix(returns)
	if err != nil {
		return nil, err
	}

	n := len(mu)
	if len(weights) != n {
		return nil, &InvalidInputError{
			Reason: fmt.Sprintf("weights vector has %d entries, sample has %d assets", len(weights), n),
		}
	}
	if symbols == nil {
		symbols = make([]string, n)
		for i := range symbols {
			symbols[i] = fmt.Sprintf("asset%d", i+1)
		}
	} else if len(symbols) != n {
		return nil, &InvalidInputError{
			Reason: fmt.Sprintf("%d symbols for a sample with %d assets", len(symbols), n),
		}
	}

	return &Portfolio{
		symbols: append([]string(nil), symbols...),
		returns: copyMatrix(returns),
		weights: append([]float64(nil), weights...),
		mu:      mu,
		cov:     cov,
	}, nil
}

// NewEqualWeightPortfolio builds the 1/N portfolio over the sample's assets.
func NewEqualWeightPortfolio(symbols []string, returns [][]float64) (*Portfolio, error) {
	mu, err := MeanVector(returns)
	if err != nil {
		return nil, err
	}
	n := len(mu)
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1 / float64(n)
	}
	return NewPortfolio(symbols, returns, weights)
}

// NewMVPPortfolio builds the minimum-variance portfolio estimated from the
// sample.
func NewMVPPortfolio(symbols []string, returns [][]float64) (*Portfolio, error) {
	weights, err := MVPWeightsFromReturns(returns)
	if err != nil {
		return nil, err
	}
	return NewPortfolio(symbols, returns, weights)
}

// NewOptimalPortfolio builds the efficient-frontier portfolio for the target
// expected return, estimated from the sample.
func NewOptimalPortfolio(symbols []string, returns [][]float64, targetReturn float64) (*Portfolio, error) {
	weights, err := OptimalWeightsFromReturns(targetReturn, returns)
	if err != nil {
		return nil, err
	}
	return NewPortfolio(symbols, returns, weights)
}

// Symbols returns the asset names, in column order.
func (p *Portfolio) Symbols() []string {
	return append([]string(nil), p.symbols...)
}

// Weights returns the weights vector.
func (p *Portfolio) Weights() []float64 {
	return append([]float64(nil), p.weights...)
}

// MeanReturns returns the per-asset mean returns estimated at construction.
func (p *Portfolio) MeanReturns() []float64 {
	return append([]float64(nil), p.mu...)
}

// CovarianceMatrix returns the sample covariance estimated at construction.
func (p *Portfolio) CovarianceMatrix() [][]float64 {
	return copyMatrix(p.cov)
}

// ExpectedReturn is the portfolio expected return w·mu.
func (p *Portfolio) ExpectedReturn() float64 {
	var e float64
	for i, w := range p.weights {
		e += w * p.mu[i]
	}
	return e
}

// Variance is the portfolio variance wᵀ·Σ·w.
func (p *Portfolio) Variance() float64 {
	var v float64
	for i, wi := range p.weights {
		for j, wj := range p.weights {
			v += wi * wj * p.cov[i][j]
		}
	}
	return v
}

// Volatility is the portfolio standard deviation.
func (p *Portfolio) Volatility() float64 {
	return math.Sqrt(p.Variance())
}

// SharpeRatio is (ExpectedReturn − riskFree) / Volatility, per sample period.
// Returns nil when volatility is zero.
func (p *Portfolio) SharpeRatio(riskFree float64) *float64 {
	vol := p.Volatility()
	if vol == 0 {
		return nil
	}
	sharpe := (p.ExpectedReturn() - riskFree) / vol
	return &sharpe
}

// AccumulatedAssetReturns returns the per-asset cumulative compounded return
// series: acc[t][j] = Π_{s≤t}(1 + r[s][j]) − 1.
func (p *Portfolio) AccumulatedAssetReturns() [][]float64 {
	t := len(p.returns)
	n := len(p.weights)
	acc := make([][]float64, t)
	growth := make([]float64, n)
	for j := range growth {
		growth[j] = 1
	}
	for i := 0; i < t; i++ {
		acc[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			growth[j] *= 1 + p.returns[i][j]
			acc[i][j] = growth[j] - 1
		}
	}
	return acc
}

// AccumulatedReturns returns the portfolio cumulative return series,
// combining the per-asset accumulated returns with the weights vector:
// acc[t] = (accAsset[t] + 1)·w − 1.
func (p *Portfolio) AccumulatedReturns() []float64 {
	assetAcc := p.AccumulatedAssetReturns()
	acc := make([]float64, len(assetAcc))
	for i, row := range assetAcc {
		var v float64
		for j, w := range p.weights {
			v += (row[j] + 1) * w
		}
		acc[i] = v - 1
	}
	return acc
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

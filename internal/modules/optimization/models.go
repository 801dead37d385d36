package optimization

import "time"

// Strategy names reported in results.
const (
	StrategyMVP         = "mvp"
	StrategyFrontier    = "frontier"
	StrategyEqualWeight = "equal_weight"
	StrategyCustom      = "custom"
)

// OptimizeRequest is the JSON body for the frontier and MVP endpoints.
// Either a raw returns sample or explicit moments (cov, plus mu for the
// frontier) must be supplied, never both.
type OptimizeRequest struct {
	TargetReturn *float64    `json:"target_return,omitempty"`
	Symbols      []string    `json:"symbols,omitempty"`
	Returns      [][]float64 `json:"returns,omitempty"` // T×N, one column per asset
	Mu           []float64   `json:"mu,omitempty"`
	Cov          [][]float64 `json:"cov,omitempty"`
}

// HistoryOptimizeRequest solves against stored price history instead of an
// inline sample. An empty symbol list means the full stored universe.
type HistoryOptimizeRequest struct {
	Symbols      []string `json:"symbols,omitempty"`
	TargetReturn *float64 `json:"target_return,omitempty"`
	LookbackDays int      `json:"lookback_days,omitempty"`
}

// MetricsRequest asks for the read-only portfolio view over a sample and a
// weights vector. Missing weights default to equal weight.
type MetricsRequest struct {
	Symbols []string    `json:"symbols,omitempty"`
	Returns [][]float64 `json:"returns"`
	Weights []float64   `json:"weights,omitempty"`
}

// Metrics is the derived portfolio view: expected return, variance,
// volatility and Sharpe per sample period, plus annualized figures when a
// daily returns sample was available.
type Metrics struct {
	ExpectedReturn       *float64 `json:"expected_return,omitempty"`
	Variance             float64  `json:"variance"`
	Volatility           float64  `json:"volatility"`
	SharpeRatio          *float64 `json:"sharpe_ratio,omitempty"`
	AnnualizedVolatility *float64 `json:"annualized_volatility,omitempty"`
	AnnualizedSharpe     *float64 `json:"annualized_sharpe,omitempty"`
}

// Result is a solved weights vector with its metrics.
type Result struct {
	Timestamp    time.Time          `json:"timestamp"`
	Strategy     string             `json:"strategy"`
	TargetReturn *float64           `json:"target_return,omitempty"`
	Symbols      []string           `json:"symbols"`
	Weights      map[string]float64 `json:"weights"`
	Metrics      *Metrics           `json:"metrics,omitempty"`
}

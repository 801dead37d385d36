package optimization

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bagelworks/meanvar/internal/history"
	"github.com/bagelworks/meanvar/pkg/formulas"
	"github.com/bagelworks/meanvar/pkg/meanvar"
)

// Config holds service tunables.
type Config struct {
	RiskFreeRate float64 // annual, as decimal
	LookbackDays int     // default history window
}

// Service wraps the closed-form solver with history access, metrics
// derivation and a cache of the last solved result.
type Service struct {
	history *history.Repository // nil when running without a price store
	cfg     Config
	log     zerolog.Logger

	mu   sync.RWMutex
	last *Result
}

// NewService creates a new optimization service.
func NewService(hist *history.Repository, cfg Config, log zerolog.Logger) *Service {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 252
	}
	return &Service{
		history: hist,
		cfg:     cfg,
		log:     log.With().Str("component", "optimization").Logger(),
	}
}

// MVP solves the minimum-variance portfolio from an inline sample or an
// explicit covariance matrix.
func (s *Service) MVP(req OptimizeRequest) (*Result, error) {
	if err := validateInputs(req); err != nil {
		return nil, err
	}

	var result *Result
	if req.Returns != nil {
		p, err := meanvar.NewMVPPortfolio(req.Symbols, req.Returns)
		if err != nil {
			return nil, err
		}
		result = s.resultFromPortfolio(StrategyMVP, nil, p, req.Returns)
	} else {
		weights, err := meanvar.MVPWeights(req.Cov)
		if err != nil {
			return nil, err
		}
		result = s.resultFromMoments(StrategyMVP, nil, req, weights)
	}

	s.storeLast(result)
	s.log.Info().
		Str("strategy", result.Strategy).
		Int("assets", len(result.Weights)).
		Msg("Solved minimum-variance portfolio")
	return result, nil
}

// Frontier solves the efficient-frontier portfolio for the requested target
// return, from an inline sample or explicit mu and cov.
func (s *Service) Frontier(req OptimizeRequest) (*Result, error) {
	if req.TargetReturn == nil {
		return nil, &meanvar.InvalidInputError{Reason: "target_return is required for frontier weights"}
	}
	if err := validateInputs(req); err != nil {
		return nil, err
	}

	target := *req.TargetReturn

	var result *Result
	if req.Returns != nil {
		p, err := meanvar.NewOptimalPortfolio(req.Symbols, req.Returns, target)
		if err != nil {
			return nil, err
		}
		result = s.resultFromPortfolio(StrategyFrontier, req.TargetReturn, p, req.Returns)
	} else {
		if req.Mu == nil {
			return nil, &meanvar.InvalidInputError{Reason: "mu is required when solving the frontier from moments"}
		}
		weights, err := meanvar.OptimalWeights(target, req.Mu, req.Cov)
		if err != nil {
			return nil, err
		}
		result = s.resultFromMoments(StrategyFrontier, req.TargetReturn, req, weights)
	}

	s.storeLast(result)
	s.log.Info().
		Str("strategy", result.Strategy).
		Float64("target_return", target).
		Int("assets", len(result.Weights)).
		Msg("Solved frontier portfolio")
	return result, nil
}

// FromHistory loads an aligned returns sample from the price store and
// solves either the MVP (no target) or the frontier portfolio.
func (s *Service) FromHistory(req HistoryOptimizeRequest) (*Result, error) {
	if s.history == nil {
		return nil, fmt.Errorf("no price history store configured")
	}

	symbols := req.Symbols
	if len(symbols) == 0 {
		var err error
		symbols, err = s.history.Symbols()
		if err != nil {
			return nil, err
		}
		if len(symbols) == 0 {
			return nil, fmt.Errorf("no symbols in price history")
		}
	}

	lookback := req.LookbackDays
	if lookback <= 0 {
		lookback = s.cfg.LookbackDays
	}

	sample, err := s.history.ReturnsSample(symbols, lookback)
	if err != nil {
		return nil, fmt.Errorf("failed to build returns sample: %w", err)
	}

	inline := OptimizeRequest{
		TargetReturn: req.TargetReturn,
		Symbols:      symbols,
		Returns:      sample,
	}
	if req.TargetReturn != nil {
		return s.Frontier(inline)
	}
	return s.MVP(inline)
}

// RecomputeMVP refreshes the cached MVP weights for the full stored
// universe. Returns nil without error when fewer than two symbols are
// stored, since there is nothing to solve yet.
func (s *Service) RecomputeMVP() (*Result, error) {
	if s.history == nil {
		return nil, fmt.Errorf("no price history store configured")
	}

	symbols, err := s.history.Symbols()
	if err != nil {
		return nil, err
	}
	if len(symbols) < 2 {
		s.log.Debug().Int("symbols", len(symbols)).Msg("Skipping recompute, universe too small")
		return nil, nil
	}

	return s.FromHistory(HistoryOptimizeRequest{Symbols: symbols})
}

// PortfolioMetrics builds the read-only portfolio view for a sample and a
// weights vector, defaulting to equal weights.
func (s *Service) PortfolioMetrics(req MetricsRequest) (*Result, error) {
	var (
		p        *meanvar.Portfolio
		strategy string
		err      error
	)
	if req.Weights == nil {
		strategy = StrategyEqualWeight
		p, err = meanvar.NewEqualWeightPortfolio(req.Symbols, req.Returns)
	} else {
		strategy = StrategyCustom
		p, err = meanvar.NewPortfolio(req.Symbols, req.Returns, req.Weights)
	}
	if err != nil {
		return nil, err
	}

	return s.resultFromPortfolio(strategy, nil, p, req.Returns), nil
}

// LastResult returns the most recently solved result, or nil.
func (s *Service) LastResult() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Service) storeLast(result *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = result
}

// resultFromPortfolio derives the full metrics view from a portfolio and the
// sample it was built on, including annualized figures from the portfolio's
// per-period return series.
func (s *Service) resultFromPortfolio(strategy string, target *float64, p *meanvar.Portfolio, sample [][]float64) *Result {
	weights := p.Weights()
	symbols := p.Symbols()

	series := make([]float64, len(sample))
	for t, row := range sample {
		var r float64
		for j, w := range weights {
			r += w * row[j]
		}
		series[t] = r
	}

	expected := p.ExpectedReturn()
	annualVol := formulas.AnnualizedVolatility(series)
	metrics := &Metrics{
		ExpectedReturn:       &expected,
		Variance:             p.Variance(),
		Volatility:           p.Volatility(),
		SharpeRatio:          p.SharpeRatio(s.cfg.RiskFreeRate / formulas.TradingDaysPerYear),
		AnnualizedVolatility: &annualVol,
		AnnualizedSharpe:     formulas.CalculateSharpeRatio(series, s.cfg.RiskFreeRate, formulas.TradingDaysPerYear),
	}

	return &Result{
		Timestamp:    time.Now().UTC(),
		Strategy:     strategy,
		TargetReturn: target,
		Symbols:      symbols,
		Weights:      weightMap(symbols, weights),
		Metrics:      metrics,
	}
}

// resultFromMoments derives what it can when only moments were supplied:
// variance and volatility always, expected return only when mu is present.
func (s *Service) resultFromMoments(strategy string, target *float64, req OptimizeRequest, weights []float64) *Result {
	symbols := req.Symbols
	if symbols == nil {
		symbols = make([]string, len(weights))
		for i := range symbols {
			symbols[i] = fmt.Sprintf("asset%d", i+1)
		}
	}

	variance := portfolioVariance(weights, req.Cov)
	metrics := &Metrics{
		Variance:   variance,
		Volatility: sqrt(variance),
	}
	if req.Mu != nil {
		var expected float64
		for i, w := range weights {
			expected += w * req.Mu[i]
		}
		metrics.ExpectedReturn = &expected
		if metrics.Volatility > 0 {
			// Explicit moments carry no period, so the rate is applied in
			// the caller's units rather than de-annualized.
			sharpe := (expected - s.cfg.RiskFreeRate) / metrics.Volatility
			metrics.SharpeRatio = &sharpe
		}
	}

	return &Result{
		Timestamp:    time.Now().UTC(),
		Strategy:     strategy,
		TargetReturn: target,
		Symbols:      symbols,
		Weights:      weightMap(symbols, weights),
		Metrics:      metrics,
	}
}

// validateInputs enforces the sample-or-moments contract shared by the MVP
// and frontier endpoints.
func validateInputs(req OptimizeRequest) error {
	if req.Returns == nil && req.Cov == nil {
		return &meanvar.InvalidInputError{Reason: "either returns or cov must be provided"}
	}
	if req.Returns != nil && (req.Cov != nil || req.Mu != nil) {
		return &meanvar.InvalidInputError{Reason: "returns and explicit moments are mutually exclusive"}
	}
	if req.Cov != nil && req.Symbols != nil && len(req.Symbols) != len(req.Cov) {
		return &meanvar.InvalidInputError{
			Reason: fmt.Sprintf("%d symbols for a %d-asset covariance matrix", len(req.Symbols), len(req.Cov)),
		}
	}
	if req.Mu != nil && req.Cov != nil && len(req.Mu) != len(req.Cov) {
		return &meanvar.InvalidInputError{
			Reason: fmt.Sprintf("mean vector has %d assets, covariance matrix has %d", len(req.Mu), len(req.Cov)),
		}
	}
	return nil
}

func weightMap(symbols []string, weights []float64) map[string]float64 {
	m := make(map[string]float64, len(weights))
	for i, w := range weights {
		m[symbols[i]] = w
	}
	return m
}

func portfolioVariance(weights []float64, cov [][]float64) float64 {
	var v float64
	for i, wi := range weights {
		for j, wj := range weights {
			v += wi * wj * cov[i][j]
		}
	}
	return v
}

func sqrt(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Sqrt(x)
}

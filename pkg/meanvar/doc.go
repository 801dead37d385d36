// Package meanvar computes closed-form mean-variance portfolio weights.
//
// It implements the classic Merton solution for the unconstrained efficient
// frontier: given a mean vector mu and covariance matrix cov (or a raw T×N
// returns sample to estimate them from), it produces the minimum-variance
// portfolio and the frontier portfolio for any target expected return. Weights
// always sum to 1 and may be negative (long/short is allowed); there are no
// box or long-only constraints and no iterative solver involved.
//
// All functions are pure and safe for concurrent use. Inputs are never
// mutated.
package meanvar

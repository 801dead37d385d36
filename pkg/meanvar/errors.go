package meanvar

import "fmt"

// InvalidInputError reports a malformed sample or a dimension mismatch
// between mu, cov and returns.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("meanvar: invalid input: %s", e.Reason)
}

// SingularMatrixError reports a covariance matrix that could not be inverted,
// either exactly singular or ill-conditioned beyond gonum's
// mat.ConditionTolerance. The underlying linear-algebra error is preserved
// and available via Unwrap.
type SingularMatrixError struct {
	Err error
}

func (e *SingularMatrixError) Error() string {
	return fmt.Sprintf("meanvar: covariance matrix is not invertible: %v", e.Err)
}

func (e *SingularMatrixError) Unwrap() error { return e.Err }

// DegenerateFrontierError reports a frontier discriminant D = B·C − A² that
// is numerically zero, which leaves target-return weights undefined. This
// happens in degenerate markets, e.g. when all assets share the same expected
// return.
type DegenerateFrontierError struct {
	D float64
}

func (e *DegenerateFrontierError) Error() string {
	return fmt.Sprintf("meanvar: degenerate frontier: discriminant D = %g is numerically zero", e.D)
}

package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Validation errors
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidGrid     = fmt.Errorf("%w: grid", ErrInvalidArgument)

	// Numeric errors
	ErrNonConvergence = errors.New("interval search did not converge")
	ErrAllExcluded    = errors.New("every realization was excluded")
)

// NewInvalidArgumentError reports an out-of-domain parameter
func NewInvalidArgumentError(name string, value interface{}, reason string) error {
	return fmt.Errorf("%w: %s=%v %s", ErrInvalidArgument, name, value, reason)
}

// NewConvergenceError reports a failed interval search for the posterior after k of n successes
func NewConvergenceError(n, k int, err error) error {
	return fmt.Errorf("%w for n=%d k=%d: %v", ErrNonConvergence, n, k, err)
}

// Error checking helpers
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

func IsConvergenceError(err error) bool {
	return errors.Is(err, ErrNonConvergence) ||
		errors.Is(err, ErrAllExcluded)
}

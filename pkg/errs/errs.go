// Package errs defines the error kinds shared by every analytics component.
// Callers classify failures with errors.Is against the sentinel values.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput covers out-of-range parameters, misaligned series,
	// and zero or oversized windows.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientData covers reductions on empty series and estimators
	// asked for more history than the series carries.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNumerical covers non-finite likelihoods, singular regressions, and
	// optimiser divergence.
	ErrNumerical = errors.New("numerical error")

	// ErrNotInitialized is returned by model queries before a successful fit.
	ErrNotInitialized = errors.New("not initialized")

	// ErrCacheUnavailable signals that caching was skipped under contention.
	// The computed result is still returned to the caller.
	ErrCacheUnavailable = errors.New("cache unavailable")
)

// InvalidInput wraps ErrInvalidInput with a formatted message.
func InvalidInput(format string, args ...interface{}) error {
	return wrap(ErrInvalidInput, format, args...)
}

// InsufficientData wraps ErrInsufficientData with a formatted message.
func InsufficientData(format string, args ...interface{}) error {
	return wrap(ErrInsufficientData, format, args...)
}

// Numerical wraps ErrNumerical with a formatted message.
func Numerical(format string, args ...interface{}) error {
	return wrap(ErrNumerical, format, args...)
}

// NotInitialized wraps ErrNotInitialized with a formatted message.
func NotInitialized(format string, args ...interface{}) error {
	return wrap(ErrNotInitialized, format, args...)
}

func wrap(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

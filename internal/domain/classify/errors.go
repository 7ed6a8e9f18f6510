package classify

import "errors"

// Sentinel kinds for classification errors.
var (
	// ErrUnavailable means the scoring backend cannot produce a result,
	// e.g. a configured weights artifact is missing or corrupt. It is a
	// retryable condition and is never silently defaulted.
	ErrUnavailable = errors.New("classification unavailable")
)

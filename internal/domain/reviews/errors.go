package reviews

import "errors"

var (
	// ErrRateLimited indicates the provider rejected the search due to
	// quota exhaustion.
	ErrRateLimited = errors.New("review provider rate limited")

	// ErrProviderUnavailable indicates the provider could not be reached.
	ErrProviderUnavailable = errors.New("review provider unavailable")
)

package resolver

import "errors"

var (
	// ErrResolutionBudgetExceeded is returned when a dependency walk fetches more transactions than the configured
	// budget allows.
	ErrResolutionBudgetExceeded = errors.New("resolution budget exceeded")

	// ErrResolutionDepthExceeded is returned when a dependency chain is longer than the configured maximum depth.
	ErrResolutionDepthExceeded = errors.New("resolution depth exceeded")
)

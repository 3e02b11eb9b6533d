package health

import "errors"

var (
	// ErrCheckFailed wraps the probe error of a failing check.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout is reported when a check outlives the aggregator timeout.
	ErrCheckTimeout = errors.New("health: check timed out")

	// ErrCheckerNotFound is returned for an unregistered check name.
	ErrCheckerNotFound = errors.New("health: no such check")

	// ErrNoDurableTier is reported when the cache runs without a durable tier.
	ErrNoDurableTier = errors.New("health: no durable cache tier")
)

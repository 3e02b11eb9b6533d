package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidKey      = errors.New("cache: key is invalid")
	ErrKeyTooLong      = errors.New("cache: key exceeds max length")
	ErrUnknownCategory = errors.New("cache: unknown category")
	ErrInvalidCategory = errors.New("cache: invalid category")
	ErrInvalidTTLRule  = errors.New("cache: invalid ttl rule")
)

// Store is one storage tier.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: an error means the tier is unusable for this call. A miss is
// (nil, false, nil), never an error.
// - Set with a non-positive TTL stores nothing.
// - Delete is idempotent.
type Store interface {
	// Name identifies the tier in logs and metrics.
	Name() string

	// Get retrieves a stored value.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a stored value.
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by tiers that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

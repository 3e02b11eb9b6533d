package cache

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DefaultCapacity is the fallback capacity of a category that declares none.
const DefaultCapacity = 256

// TTLRule selects the TTL for one call from its arguments. When ok is false
// the category's DefaultTTL applies. A non-positive TTL disables caching for
// the call.
type TTLRule func(args map[string]any) (ttl time.Duration, ok bool)

// Category is one tool family's cache policy. Categories are built at
// startup and never change afterwards.
type Category struct {
	// Name is the unique category name, e.g. "weather".
	Name string

	// Capacity is the maximum number of entries in the fallback tier.
	// Default: 256
	Capacity int

	// DefaultTTL applies when there is no TTLRule or the rule abstains.
	// Zero disables caching for the category.
	DefaultTTL time.Duration

	// MaxTTL clamps every TTL. Zero means no maximum.
	MaxTTL time.Duration

	// TTLRule optionally derives the TTL from call arguments.
	TTLRule TTLRule
}

// Validate reports whether the category is usable.
func (c Category) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCategory)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("%w: %s: capacity must not be negative", ErrInvalidCategory, c.Name)
	}
	if c.DefaultTTL < 0 || c.MaxTTL < 0 {
		return fmt.Errorf("%w: %s: ttl must not be negative", ErrInvalidCategory, c.Name)
	}
	return nil
}

// TTLFor returns the TTL for a call, applying the rule, the default and the
// MaxTTL clamp. A result <= 0 means the call is not cached.
func (c Category) TTLFor(args map[string]any) time.Duration {
	ttl := c.DefaultTTL
	if c.TTLRule != nil {
		if d, ok := c.TTLRule(args); ok {
			ttl = d
		}
	}
	if ttl <= 0 {
		return 0
	}
	if c.MaxTTL > 0 && ttl > c.MaxTTL {
		ttl = c.MaxTTL
	}
	return ttl
}

// TTLStep maps horizons up to and including UpTo to TTL.
type TTLStep struct {
	UpTo float64
	TTL  time.Duration
}

// HorizonRule builds the stability-horizon rule: the numeric argument arg
// (e.g. forecast days) selects the first step whose UpTo covers it, and
// horizons beyond the last step get the last TTL. Steps must have strictly
// ascending UpTo and non-decreasing TTL, so a longer horizon never caches
// for less time. A missing or non-numeric argument abstains.
func HorizonRule(arg string, steps []TTLStep) (TTLRule, error) {
	if arg == "" || len(steps) == 0 {
		return nil, fmt.Errorf("%w: argument and steps are required", ErrInvalidTTLRule)
	}
	for i := 1; i < len(steps); i++ {
		if steps[i].UpTo <= steps[i-1].UpTo {
			return nil, fmt.Errorf("%w: step %d is not ascending", ErrInvalidTTLRule, i)
		}
		if steps[i].TTL < steps[i-1].TTL {
			return nil, fmt.Errorf("%w: step %d decreases the ttl", ErrInvalidTTLRule, i)
		}
	}

	steps = append([]TTLStep(nil), steps...)
	return func(args map[string]any) (time.Duration, bool) {
		h, ok := number(args[arg])
		if !ok {
			return 0, false
		}
		for _, s := range steps {
			if h <= s.UpTo {
				return s.TTL, true
			}
		}
		return steps[len(steps)-1].TTL, true
	}, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

package config

import (
	"fmt"
	"time"

	"github.com/jonwraymond/agriroute/cache"
)

// CategoryConfig declares one cache category.
type CategoryConfig struct {
	Name string `yaml:"name"`

	// Capacity is the fallback tier size.
	// Default: cache.DefaultCapacity
	Capacity int `yaml:"capacity"`

	// TTL is the default entry lifetime. Zero disables caching.
	TTL time.Duration `yaml:"ttl"`

	// MaxTTL clamps every TTL. Zero means no maximum.
	MaxTTL time.Duration `yaml:"max_ttl"`

	// Horizon optionally derives the TTL from a numeric argument.
	Horizon *HorizonConfig `yaml:"horizon"`
}

// HorizonConfig maps a stability horizon argument to TTL steps.
type HorizonConfig struct {
	// Arg names the numeric argument, e.g. "days".
	Arg   string       `yaml:"arg"`
	Steps []StepConfig `yaml:"steps"`
}

// StepConfig is one horizon step.
type StepConfig struct {
	UpTo float64       `yaml:"up_to"`
	TTL  time.Duration `yaml:"ttl"`
}

// Build converts the declaration into a cache.Category.
func (c CategoryConfig) Build() (cache.Category, error) {
	cat := cache.Category{
		Name:       c.Name,
		Capacity:   c.Capacity,
		DefaultTTL: c.TTL,
		MaxTTL:     c.MaxTTL,
	}
	if c.Horizon != nil {
		steps := make([]cache.TTLStep, len(c.Horizon.Steps))
		for i, s := range c.Horizon.Steps {
			steps[i] = cache.TTLStep{UpTo: s.UpTo, TTL: s.TTL}
		}
		rule, err := cache.HorizonRule(c.Horizon.Arg, steps)
		if err != nil {
			return cache.Category{}, fmt.Errorf("category %q: %w", c.Name, err)
		}
		cat.TTLRule = rule
	}
	if err := cat.Validate(); err != nil {
		return cache.Category{}, err
	}
	return cat, nil
}

// CacheCategories builds every declared category.
func (c *Config) CacheCategories() ([]cache.Category, error) {
	out := make([]cache.Category, 0, len(c.Categories))
	for _, decl := range c.Categories {
		cat, err := decl.Build()
		if err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, nil
}

// DefaultCategories returns the weather, regulatory and search categories.
// Weather forecasts for further days change less often and are cached
// longer; regulatory data changes rarely.
func DefaultCategories() []CategoryConfig {
	return []CategoryConfig{
		{
			Name:     "weather",
			Capacity: 512,
			TTL:      30 * time.Minute,
			MaxTTL:   12 * time.Hour,
			Horizon: &HorizonConfig{
				Arg: "days",
				Steps: []StepConfig{
					{UpTo: 1, TTL: 30 * time.Minute},
					{UpTo: 3, TTL: 2 * time.Hour},
					{UpTo: 7, TTL: 6 * time.Hour},
				},
			},
		},
		{
			Name:     "regulatory",
			Capacity: 256,
			TTL:      24 * time.Hour,
		},
		{
			Name:     "search",
			Capacity: 256,
			TTL:      time.Hour,
		},
	}
}

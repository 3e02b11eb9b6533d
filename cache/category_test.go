package cache

import (
	"errors"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func forecastRule(t *testing.T) TTLRule {
	t.Helper()
	rule, err := HorizonRule("days", []TTLStep{
		{UpTo: 0, TTL: 10 * time.Minute},
		{UpTo: 2, TTL: 30 * time.Minute},
		{UpTo: 7, TTL: 3 * time.Hour},
	})
	if err != nil {
		t.Fatalf("HorizonRule() error = %v", err)
	}
	return rule
}

func TestCategory_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cat     Category
		wantErr bool
	}{
		{"valid", Category{Name: "weather", Capacity: 10, DefaultTTL: time.Minute}, false},
		{"zero capacity uses default", Category{Name: "weather"}, false},
		{"missing name", Category{Capacity: 10}, true},
		{"negative capacity", Category{Name: "weather", Capacity: -1}, true},
		{"negative ttl", Category{Name: "weather", DefaultTTL: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cat.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCategory) {
				t.Errorf("error %v should wrap ErrInvalidCategory", err)
			}
		})
	}
}

func TestCategory_TTLFor(t *testing.T) {
	rule := forecastRule(t)
	tests := []struct {
		name string
		cat  Category
		args map[string]any
		want time.Duration
	}{
		{"default", Category{DefaultTTL: 5 * time.Minute}, nil, 5 * time.Minute},
		{"disabled", Category{}, nil, 0},
		{"clamped", Category{DefaultTTL: 2 * time.Hour, MaxTTL: time.Hour}, nil, time.Hour},
		{"rule same day", Category{DefaultTTL: time.Minute, TTLRule: rule}, map[string]any{"days": 0}, 10 * time.Minute},
		{"rule two days", Category{DefaultTTL: time.Minute, TTLRule: rule}, map[string]any{"days": 2.0}, 30 * time.Minute},
		{"rule beyond last step", Category{DefaultTTL: time.Minute, TTLRule: rule}, map[string]any{"days": 14}, 3 * time.Hour},
		{"rule string arg", Category{DefaultTTL: time.Minute, TTLRule: rule}, map[string]any{"days": "5"}, 3 * time.Hour},
		{"rule abstains", Category{DefaultTTL: time.Minute, TTLRule: rule}, map[string]any{"location": "Dourdan"}, time.Minute},
		{"rule clamped", Category{DefaultTTL: time.Minute, MaxTTL: time.Hour, TTLRule: rule}, map[string]any{"days": 7}, time.Hour},
		{
			"rule disables",
			Category{DefaultTTL: time.Minute, TTLRule: func(map[string]any) (time.Duration, bool) { return 0, true }},
			nil,
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cat.TTLFor(tt.args); got != tt.want {
				t.Errorf("TTLFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHorizonRule_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		arg   string
		steps []TTLStep
	}{
		{"no arg", "", []TTLStep{{UpTo: 1, TTL: time.Minute}}},
		{"no steps", "days", nil},
		{"not ascending", "days", []TTLStep{{UpTo: 2, TTL: time.Minute}, {UpTo: 1, TTL: time.Hour}}},
		{"decreasing ttl", "days", []TTLStep{{UpTo: 1, TTL: time.Hour}, {UpTo: 2, TTL: time.Minute}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := HorizonRule(tt.arg, tt.steps); !errors.Is(err, ErrInvalidTTLRule) {
				t.Errorf("HorizonRule() error = %v, want ErrInvalidTTLRule", err)
			}
		})
	}
}

// A longer stability horizon never gets a shorter TTL.
func TestHorizonRule_MonotoneProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(t, "n")
		steps := make([]TTLStep, n)
		upTo, ttl := 0.0, time.Duration(0)
		for i := range steps {
			upTo += float64(rapid.IntRange(1, 5).Draw(t, "gap"))
			ttl += time.Duration(rapid.IntRange(0, 60).Draw(t, "inc")) * time.Minute
			steps[i] = TTLStep{UpTo: upTo, TTL: ttl}
		}
		rule, err := HorizonRule("days", steps)
		if err != nil {
			t.Fatalf("HorizonRule() error = %v", err)
		}

		a := rapid.Float64Range(0, 40).Draw(t, "a")
		b := rapid.Float64Range(0, 40).Draw(t, "b")
		if a > b {
			a, b = b, a
		}
		ta, _ := rule(map[string]any{"days": a})
		tb, _ := rule(map[string]any{"days": b})
		if ta > tb {
			t.Fatalf("ttl(%v) = %v > ttl(%v) = %v", a, ta, b, tb)
		}
	})
}

package cache_test

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/agriroute/cache"
)

func ExampleGetOrCompute() {
	m, err := cache.NewManager([]cache.Category{
		{Name: "weather", Capacity: 128, DefaultTTL: 30 * time.Minute},
	}, nil)
	if err != nil {
		panic(err)
	}

	fetch := func(ctx context.Context) (string, error) {
		fmt.Println("calling provider")
		return "sunny", nil
	}

	ctx := context.Background()
	args := map[string]any{"location": "Dourdan"}
	for i := 0; i < 2; i++ {
		v, hit, _ := cache.GetOrCompute(ctx, m, "weather", args, fetch)
		fmt.Println(v, hit)
	}
	// Output:
	// calling provider
	// sunny false
	// sunny true
}

func ExampleHorizonRule() {
	rule, err := cache.HorizonRule("days", []cache.TTLStep{
		{UpTo: 0, TTL: 10 * time.Minute},
		{UpTo: 3, TTL: time.Hour},
		{UpTo: 7, TTL: 3 * time.Hour},
	})
	if err != nil {
		panic(err)
	}
	weather := cache.Category{Name: "weather", DefaultTTL: 30 * time.Minute, TTLRule: rule}

	fmt.Println(weather.TTLFor(map[string]any{"days": 0}))
	fmt.Println(weather.TTLFor(map[string]any{"days": 5}))
	fmt.Println(weather.TTLFor(map[string]any{"location": "Dourdan"}))
	// Output:
	// 10m0s
	// 3h0m0s
	// 30m0s
}

func ExampleKey() {
	a, _ := cache.Key("weather", map[string]any{"location": "Dourdan", "days": 3})
	b, _ := cache.Key("weather", map[string]any{"days": 3, "location": "Dourdan"})
	fmt.Println(a == b)
	// Output: true
}

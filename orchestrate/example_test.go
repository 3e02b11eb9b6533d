package orchestrate_test

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonwraymond/agriroute/cache"
	"github.com/jonwraymond/agriroute/classify"
	"github.com/jonwraymond/agriroute/envelope"
	"github.com/jonwraymond/agriroute/orchestrate"
	"github.com/jonwraymond/agriroute/resilience"
)

func ExampleOrchestrator_Handle() {
	manager, _ := cache.NewManager([]cache.Category{
		{Name: "weather", Capacity: 64, DefaultTTL: 10 * time.Minute},
		{Name: "regulatory", Capacity: 64, DefaultTTL: 24 * time.Hour},
		{Name: "search", Capacity: 64, DefaultTTL: time.Hour},
	}, nil)

	weather := orchestrate.NewAdapterFunc("weather", func(ctx context.Context, args map[string]any) (json.RawMessage, error) {
		return json.RawMessage(`{"temp_c":14}`), nil
	})
	regulatory := orchestrate.NewAdapterFunc("regulatory", func(ctx context.Context, args map[string]any) (json.RawMessage, error) {
		return nil, envelope.Upstream(nil, "status 503")
	})
	search := orchestrate.NewAdapterFunc("search", func(ctx context.Context, args map[string]any) (json.RawMessage, error) {
		return json.RawMessage(`["coffee needs frost-free winters"]`), nil
	})

	registry, err := orchestrate.NewRegistry(manager, resilience.NewLimiters(),
		orchestrate.Binding{Adapter: weather, RateLimit: orchestrate.RateLimit{Budget: 10, Window: time.Second}},
		orchestrate.Binding{Adapter: regulatory},
		orchestrate.Binding{Adapter: search},
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	classifier, _ := classify.New(classify.DefaultSignals())
	orch := orchestrate.New(classifier, registry, orchestrate.Config{})

	env := orch.Handle(context.Background(), orchestrate.Request{Query: "Je veux planter du café à Dourdan"})
	fmt.Println(env.Classification.Tier, env.Success, len(env.Results))
	for _, r := range env.Errors() {
		fmt.Println(r.Category, r.ErrorType)
	}
	// Output:
	// complex true 3
	// regulatory upstream_error
}

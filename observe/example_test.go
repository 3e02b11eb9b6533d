package observe_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonwraymond/agriroute/observe"
)

func ExampleNewObserver() {
	cfg := observe.Config{
		ServiceName: "agriroute",
		Version:     "1.0.0",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "none"},
		Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
	}

	ctx := context.Background()
	obs, err := observe.NewObserver(ctx, cfg)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	defer func() {
		_ = obs.Shutdown(ctx)
	}()

	fmt.Println("Observer created successfully")
	// Output:
	// Observer created successfully
}

func ExampleNewObserver_validation() {
	_, err := observe.NewObserver(context.Background(), observe.Config{})
	if errors.Is(err, observe.ErrMissingServiceName) {
		fmt.Println("Caught: missing service name")
	}
	// Output:
	// Caught: missing service name
}

func ExampleMiddleware_Wrap() {
	mw := observe.NewMiddleware(observe.NewNoopTracer(), observe.NoopMetrics{}, nil)

	invoke := mw.Wrap(func(ctx context.Context, meta observe.InvocationMeta) (json.RawMessage, bool, error) {
		return json.RawMessage(`{"category":"` + meta.Category + `"}`), false, nil
	})

	value, _, _ := invoke(context.Background(), observe.InvocationMeta{Category: "weather"})
	fmt.Println(string(value))
	// Output:
	// {"category":"weather"}
}

func ExampleInvocationMeta_SpanName() {
	fmt.Println(observe.InvocationMeta{Category: "regulatory"}.SpanName())
	// Output:
	// agriroute.invoke.regulatory
}

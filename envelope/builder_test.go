package envelope

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBuilder_PartialFailure(t *testing.T) {
	b := NewBuilder("req-1", Classification{Tier: "complex", Categories: []string{"weather", "regulatory", "search"}})

	b.Succeeded("weather", json.RawMessage(`{"temp":12}`), false, 30*time.Millisecond)
	b.Failed("regulatory", Upstream(errors.New("500"), "ephy down"), 12*time.Millisecond)
	b.Succeeded("search", json.RawMessage(`["a"]`), true, time.Millisecond)

	env := b.Build()
	if !env.Success {
		t.Error("Success = false, want true when any invocation succeeded")
	}
	if len(env.Results) != 3 {
		t.Fatalf("len(Results) = %d, want 3", len(env.Results))
	}
	errs := env.Errors()
	if len(errs) != 1 {
		t.Fatalf("len(Errors()) = %d, want 1", len(errs))
	}
	if errs[0].Category != "regulatory" || errs[0].ErrorType != TypeUpstream {
		t.Errorf("unexpected error entry: %+v", errs[0])
	}
	if r, ok := env.Result("search"); !ok || !r.Cached {
		t.Errorf("search result = %+v, %v", r, ok)
	}
}

func TestBuilder_TotalOutage(t *testing.T) {
	b := NewBuilder("", Classification{Tier: "medium", Categories: []string{"weather", "search"}})
	b.Failed("weather", Timeoutf("deadline"), time.Second)
	b.Failed("search", errors.New("dns failure"), time.Second)

	env := b.Build()
	if env.Success {
		t.Error("Success = true, want false on total outage")
	}
	if len(env.Errors()) != 2 {
		t.Errorf("len(Errors()) = %d, want 2", len(env.Errors()))
	}
	if env.Results[1].ErrorType != TypeUnknown {
		t.Errorf("untyped error mapped to %q", env.Results[1].ErrorType)
	}
}

func TestBuilder_NilError(t *testing.T) {
	b := NewBuilder("", Classification{})
	b.Failed("weather", nil, 0)
	env := b.Build()
	if env.Results[0].ErrorType != TypeUnknown {
		t.Errorf("ErrorType = %q, want %q", env.Results[0].ErrorType, TypeUnknown)
	}
}

func TestBuilder_Concurrent(t *testing.T) {
	b := NewBuilder("", Classification{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				b.Succeeded("c", json.RawMessage(`1`), false, 0)
			} else {
				b.Failed("c", errors.New("x"), 0)
			}
		}(i)
	}
	wg.Wait()
	if got := len(b.Build().Results); got != 50 {
		t.Errorf("len(Results) = %d, want 50", got)
	}
}

func TestEnvelope_JSONShape(t *testing.T) {
	b := NewBuilder("", Classification{Tier: "simple", Categories: []string{"weather"}})
	b.Failed("weather", DataMissingf("no station near Dourdan"), 0)

	data, err := json.Marshal(b.Build())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["success"] != false {
		t.Errorf("success = %v", decoded["success"])
	}
	results := decoded["results"].([]any)
	first := results[0].(map[string]any)
	if first["error_type"] != "data_missing" {
		t.Errorf("error_type = %v", first["error_type"])
	}
	if first["message"] != "no station near Dourdan" {
		t.Errorf("message = %v", first["message"])
	}
	if _, ok := first["value"]; ok {
		t.Error("value should be omitted on failure")
	}
	cls := decoded["classification"].(map[string]any)
	if cls["tier"] != "simple" {
		t.Errorf("tier = %v", cls["tier"])
	}
}

func TestEnvelope_EmptyResultsSerializeAsArray(t *testing.T) {
	data, err := json.Marshal(NewBuilder("", Classification{}).Build())
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	_ = json.Unmarshal(data, &decoded)
	if _, ok := decoded["results"].([]any); !ok {
		t.Errorf("results = %v, want empty array", decoded["results"])
	}
	if cats := decoded["classification"].(map[string]any)["categories"]; cats == nil {
		t.Error("categories should serialize as []")
	}
}

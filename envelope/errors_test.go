package envelope

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ""},
		{"validation", Validationf("missing %s", "city"), TypeValidation},
		{"data missing", DataMissingf("no forecast"), TypeDataMissing},
		{"upstream", Upstream(errors.New("502"), "provider failed"), TypeUpstream},
		{"timeout", Timeoutf("slow"), TypeTimeout},
		{"wrapped typed", fmt.Errorf("adapter: %w", DataMissingf("empty")), TypeDataMissing},
		{"deadline", context.DeadlineExceeded, TypeTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), TypeTimeout},
		{"canceled", context.Canceled, TypeUnknown},
		{"plain", errors.New("boom"), TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeOf(tt.err); got != tt.want {
				t.Errorf("TypeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalize_BindsCategory(t *testing.T) {
	e := Normalize("weather", Validationf("bad city"))
	if e.Category != "weather" {
		t.Errorf("Category = %q, want weather", e.Category)
	}
	if e.Message != "bad city" {
		t.Errorf("Message = %q", e.Message)
	}

	plain := Normalize("search", errors.New("connection reset"))
	if plain.Type != TypeUnknown {
		t.Errorf("Type = %q, want %q", plain.Type, TypeUnknown)
	}
	if plain.Message != "connection reset" {
		t.Errorf("Message = %q", plain.Message)
	}

	if Normalize("x", nil) != nil {
		t.Error("Normalize(nil) should be nil")
	}
}

func TestNormalize_DoesNotMutateOriginal(t *testing.T) {
	orig := DataMissingf("nothing")
	_ = Normalize("regulatory", orig)
	if orig.Category != "" {
		t.Errorf("original category mutated to %q", orig.Category)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("503 service unavailable")
	err := Upstream(cause, "meteo provider")
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if err.Error() != "upstream_error: meteo provider" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Upstream(nil, "x")) {
		t.Error("upstream errors should be retryable")
	}
	for _, err := range []error{Validationf("x"), DataMissingf("x"), Timeoutf("x"), errors.New("x")} {
		if Retryable(err) {
			t.Errorf("Retryable(%v) = true, want false", err)
		}
	}
}

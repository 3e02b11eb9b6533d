package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStatus_Worse(t *testing.T) {
	if got := StatusHealthy.Worse(StatusDegraded); got != StatusDegraded {
		t.Errorf("Worse = %v, want degraded", got)
	}
	if got := StatusUnhealthy.Worse(StatusDegraded); got != StatusUnhealthy {
		t.Errorf("Worse = %v, want unhealthy", got)
	}
}

func TestResultConstructors(t *testing.T) {
	errDown := errors.New("down")

	r := Unhealthy("redis down", errDown).WithDetails(map[string]any{"tier": "redis"})
	if r.Status != StatusUnhealthy || r.Error != errDown || r.Details["tier"] != "redis" {
		t.Errorf("Unhealthy result = %+v", r)
	}
	if r.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}

	r = Degraded("slow").WithError(errDown)
	if r.Status != StatusDegraded || r.Error != errDown {
		t.Errorf("Degraded result = %+v", r)
	}
}

func TestCheckerFunc(t *testing.T) {
	c := NewCheckerFunc("probe", func(ctx context.Context) Result {
		return Healthy("ok")
	})
	if c.Name() != "probe" {
		t.Errorf("Name() = %q", c.Name())
	}
	if got := c.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("Check() status = %v", got.Status)
	}
}

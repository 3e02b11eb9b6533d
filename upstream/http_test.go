package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/agriroute/envelope"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewHTTPAdapter_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  HTTPConfig
	}{
		{"no category", HTTPConfig{Endpoint: "http://localhost"}},
		{"relative endpoint", HTTPConfig{Category: "weather", Endpoint: "/forecast"}},
		{"bad method", HTTPConfig{Category: "weather", Endpoint: "http://localhost", Method: "DELETE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHTTPAdapter(tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestHTTPAdapter_PostJSON(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "k-123", r.Header.Get("X-Api-Key"))
		var args map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		assert.Equal(t, "Dourdan", args["location"])
		_, _ = io.WriteString(w, ` {"temp_c": 14} `)
	})

	a, err := NewHTTPAdapter(HTTPConfig{
		Category: "weather",
		Endpoint: srv.URL,
		Headers:  map[string]string{"X-Api-Key": "k-123"},
	})
	require.NoError(t, err)
	assert.Equal(t, "weather", a.Category())

	got, err := a.Invoke(context.Background(), map[string]any{"location": "Dourdan"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"temp_c":14}`, string(got))
}

func TestHTTPAdapter_GetQuery(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "3", r.URL.Query().Get("days"))
		assert.Equal(t, "Dourdan", r.URL.Query().Get("location"))
		assert.Equal(t, "fr", r.URL.Query().Get("lang"))
		_, _ = io.WriteString(w, `[1,2,3]`)
	})

	a, err := NewHTTPAdapter(HTTPConfig{Category: "weather", Endpoint: srv.URL + "?lang=fr", Method: "get"})
	require.NoError(t, err)

	got, err := a.Invoke(context.Background(), map[string]any{"location": "Dourdan", "days": 3})
	require.NoError(t, err)
	assert.Equal(t, `[1,2,3]`, string(got))
}

func TestHTTPAdapter_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   envelope.ErrorType
	}{
		{http.StatusOK, "", envelope.TypeDataMissing},
		{http.StatusOK, "null", envelope.TypeDataMissing},
		{http.StatusOK, "<html>", envelope.TypeUpstream},
		{http.StatusNoContent, "", envelope.TypeDataMissing},
		{http.StatusNotFound, "unknown parcel", envelope.TypeDataMissing},
		{http.StatusBadRequest, "bad location", envelope.TypeValidation},
		{http.StatusUnprocessableEntity, "", envelope.TypeValidation},
		{http.StatusTooManyRequests, "slow down", envelope.TypeUpstream},
		{http.StatusUnauthorized, "", envelope.TypeUpstream},
		{http.StatusInternalServerError, "", envelope.TypeUpstream},
		{http.StatusServiceUnavailable, "", envelope.TypeUpstream},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status)+"/"+tt.body, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			a, err := NewHTTPAdapter(HTTPConfig{Category: "regulatory", Endpoint: srv.URL})
			require.NoError(t, err)

			_, err = a.Invoke(context.Background(), nil)
			require.Error(t, err)
			assert.Equal(t, tt.want, envelope.TypeOf(err))
		})
	}
}

func TestHTTPAdapter_StatusMessageIncludesBody(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "location is required", http.StatusBadRequest)
	})
	a, err := NewHTTPAdapter(HTTPConfig{Category: "weather", Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = a.Invoke(context.Background(), map[string]any{})
	assert.Contains(t, err.Error(), "status 400: location is required")
}

func TestHTTPAdapter_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	a, err := NewHTTPAdapter(HTTPConfig{Category: "search", Endpoint: url})
	require.NoError(t, err)

	_, err = a.Invoke(context.Background(), nil)
	assert.Equal(t, envelope.TypeUpstream, envelope.TypeOf(err))
	assert.True(t, envelope.Retryable(err))
}

func TestHTTPAdapter_DeadlineIsTimeout(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	a, err := NewHTTPAdapter(HTTPConfig{Category: "weather", Endpoint: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = a.Invoke(ctx, nil)
	assert.Equal(t, envelope.TypeTimeout, envelope.TypeOf(err))
}

func TestHTTPAdapter_ClientTimeoutIsTimeout(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	a, err := NewHTTPAdapter(HTTPConfig{Category: "weather", Endpoint: srv.URL, Timeout: 30 * time.Millisecond})
	require.NoError(t, err)

	_, err = a.Invoke(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, envelope.TypeTimeout, envelope.TypeOf(err))
	assert.False(t, envelope.Retryable(err))
}

func TestHTTPAdapter_BodyLimit(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `"`+strings.Repeat("a", 64)+`"`)
	})
	a, err := NewHTTPAdapter(HTTPConfig{Category: "search", Endpoint: srv.URL, MaxBodyBytes: 16})
	require.NoError(t, err)

	_, err = a.Invoke(context.Background(), nil)
	assert.Equal(t, envelope.TypeUpstream, envelope.TypeOf(err))
}

func TestHTTPAdapter_UnserializableArgs(t *testing.T) {
	a, err := NewHTTPAdapter(HTTPConfig{Category: "search", Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = a.Invoke(context.Background(), map[string]any{"fn": func() {}})
	assert.Equal(t, envelope.TypeValidation, envelope.TypeOf(err))
}

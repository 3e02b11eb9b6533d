package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/agriroute/classify"
	"github.com/jonwraymond/agriroute/envelope"
	"github.com/jonwraymond/agriroute/orchestrate"
)

const quietObserve = `
observe:
  service_name: agriroute-test
  logging: {enabled: false}
  metrics: {enabled: true, exporter: prometheus}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agriroute.yaml")
	require.NoError(t, os.WriteFile(path, []byte(quietObserve+body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	path := writeConfig(t, "")

	out, err := execute(t, "classify", "--config", path, "quelle", "est", "la", "météo", "demain")
	require.NoError(t, err)

	var cls classify.Classification
	require.NoError(t, json.Unmarshal([]byte(out), &cls))
	assert.Equal(t, classify.TierSimple, cls.Tier)
	assert.Equal(t, []string{"weather"}, cls.Categories)
}

func TestClassifyCommand_NeedsQuery(t *testing.T) {
	_, err := execute(t, "classify")
	assert.Error(t, err)
}

func TestCheckCommand_SQLite(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cache.db")
	path := writeConfig(t, "store: {kind: sqlite, sqlite: {path: '"+db+"'}}\n")

	out, err := execute(t, "check", "--config", path)
	require.NoError(t, err)

	var report checkReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "healthy", strings.ToLower(report.Status))
	assert.Equal(t, []string{"regulatory", "search", "weather"}, report.Categories)
	assert.Contains(t, report.Checks, "cache.durable")
}

func TestCheckCommand_RedisWithSecret(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("s3cret")
	t.Setenv("AGRI_TEST_REDIS_PASSWORD", "s3cret")

	path := writeConfig(t, "store:\n  kind: redis\n  redis:\n    addr: "+mr.Addr()+"\n    password: secretref:env:AGRI_TEST_REDIS_PASSWORD\n")

	_, err := execute(t, "check", "--config", path)
	require.NoError(t, err)
}

func TestCheckCommand_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	path := writeConfig(t, "store: {kind: redis, redis: {addr: '"+addr+"'}}\n")
	_, err := execute(t, "check", "--config", path)
	assert.Error(t, err)
}

func TestCheckCommand_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "store: {kind: etcd}\n")
	_, err := execute(t, "check", "--config", path)
	assert.Error(t, err)
}

func TestApp_ServesQueryEndToEnd(t *testing.T) {
	var calls atomic.Int64
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"temp_c":18}`))
	}))
	t.Cleanup(provider.Close)
	t.Setenv("AGRI_TEST_METEO_TOKEN", "tok")

	path := writeConfig(t, `
upstreams:
  - category: weather
    endpoint: `+provider.URL+`
    headers: {Authorization: "Bearer ${AGRI_TEST_METEO_TOKEN}"}
    rate_limit: {budget: 5, window: 1m}
    retry: {max_attempts: 2, initial_delay: 1ms}
    breaker: {max_failures: 3}
`)
	ctx := context.Background()
	cfg, err := loadConfig(ctx, path)
	require.NoError(t, err)
	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close(ctx) })

	h := a.server().Handler()
	query := func() envelope.Envelope {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"query":"quelle est la météo demain","params":{"days":1}}`))
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var env envelope.Envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		return env
	}

	first := query()
	require.True(t, first.Success)
	res, ok := first.Result("weather")
	require.True(t, ok)
	assert.JSONEq(t, `{"temp_c":18}`, string(res.Value))
	assert.False(t, res.Cached)

	second := query()
	res, _ = second.Result("weather")
	assert.True(t, res.Cached)
	assert.Equal(t, int64(1), calls.Load())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "agriroute_cache_lookups")
	assert.Contains(t, rec.Body.String(), "agriroute_invoke")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApp_UnboundCategoryIsItemized(t *testing.T) {
	ctx := context.Background()
	cfg, err := loadConfig(ctx, writeConfig(t, ""))
	require.NoError(t, err)
	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close(ctx) })

	env := a.orch.Handle(ctx, orchestrate.Request{Query: "quelle est la météo"})
	assert.False(t, env.Success)
	res, ok := env.Result("weather")
	require.True(t, ok)
	assert.Equal(t, envelope.TypeValidation, res.ErrorType)
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthChecker_Liveness(t *testing.T) {
	h := NewHealthChecker(nil)
	rec := get(t, h.LivenessHandler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestHealthChecker_Readiness(t *testing.T) {
	sc, err := NewServerContext(context.Background(), testConfig(""), WithLogger(quietLogger()))
	require.NoError(t, err)
	h := NewHealthChecker(sc)

	rec := get(t, h.ReadinessHandler(), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	h.SetReady(false)
	rec = get(t, h.ReadinessHandler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.SetReady(true)
	require.NoError(t, sc.Shutdown())
	rec = get(t, h.ReadinessHandler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthStatusNotReady, resp.Status)
	assert.Equal(t, healthStatusShuttingDown, resp.Checks["shutdown"])
}

func TestHealthChecker_DetailedReportsMissingConfig(t *testing.T) {
	cfg := testConfig("")
	cfg.AdminPassword = ""
	sc, err := NewServerContext(context.Background(), cfg, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer sc.Shutdown()

	mux := http.NewServeMux()
	NewHealthChecker(sc).RegisterHealthEndpoints(mux)

	rec := get(t, mux, "/healthz/detailed")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp DetailedHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthStatusOK, resp.Status)
	assert.Equal(t, "memory", resp.Store)
	assert.Equal(t, []string{"api_base_url", "admin_password"}, resp.MissingConfig)
	assert.Equal(t, healthStatusIncomplete, resp.Checks["cloudmail"])

	rec = get(t, mux, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code, "incomplete config keeps the server ready")
}

func TestHealthChecker_DetailedWhileDraining(t *testing.T) {
	h := NewHealthChecker(nil)
	h.SetReady(false)

	rec := get(t, h.DetailedHealthHandler(), "/healthz/detailed")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp DetailedHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthStatusNotReady, resp.Status)
	assert.Empty(t, resp.Store)
}

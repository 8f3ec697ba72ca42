package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServerRejectsBadParams(t *testing.T) {
	cfg := newServerConfigForTest()
	cfg.Threshold.Method = "nonsense"

	_, err := NewServer(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonsense")
}

func TestSetupRoutes(t *testing.T) {
	srv, err := newTestServer()
	require.NoError(t, err)

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines") ||
		strings.Contains(rec.Body.String(), "thresh_"))
}

func TestMetricsExposedAfterRequest(t *testing.T) {
	srv, err := newTestServer()
	require.NoError(t, err)

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	// One request through the middleware increments the counters.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), "thresh_http_requests_total")
}

package orchestrator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/auditor/pkg/blackboard"
)

// TestHealthCheckEndpoint_MethodNotAllowed verifies non-GET requests are rejected.
func TestHealthCheckEndpoint_MethodNotAllowed(t *testing.T) {
	server := NewHealthServer(nil, ":0", nil)

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	w := httptest.NewRecorder()

	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// TestHealthCheckResponse verifies the JSON response structure.
func TestHealthCheckResponse(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "health")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	server := NewHealthServer(client, ":0", nil)

	t.Run("healthy when Redis is reachable", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		var response HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "connected", response.Redis)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	})

	t.Run("unhealthy when Redis is unavailable", func(t *testing.T) {
		down := miniredis.NewMiniRedis()
		require.NoError(t, down.Start())
		downClient, err := blackboard.NewClient(&redis.Options{Addr: down.Addr(), MaxRetries: -1}, "health")
		require.NoError(t, err)
		t.Cleanup(func() { downClient.Close() })
		down.Close()

		w := httptest.NewRecorder()
		NewHealthServer(downClient, ":0", nil).Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		var response HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unhealthy", response.Status)
		assert.Equal(t, "disconnected", response.Redis)
		assert.NotEmpty(t, response.Error)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	turnsTotal.WithLabelValues("ok").Add(0)
	server := NewHealthServer(nil, ":0", nil)

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "auditor_turns_total")
	assert.Contains(t, w.Body.String(), "auditor_active_runs")
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Server, *StatusTracker) {
	t.Helper()
	tracker := NewStatusTracker()
	return NewServer(tracker, prometheus.NewRegistry(), zap.NewNop()), tracker
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"), path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "tagrelay_test_total"})
	require.NoError(t, registry.Register(counter))
	counter.Inc()

	srv := NewServer(NewStatusTracker(), registry, zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tagrelay_test_total 1")
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	srv, tracker := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status RunStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, StateIdle, status.State)
	assert.Zero(t, status.RunsTotal)

	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker.RunStarted("run-1", start)
	tracker.RunFinished(start.Add(time.Minute), nil)
	tracker.RunStarted("run-2", start.Add(time.Hour))
	tracker.RunFinished(start.Add(time.Hour+time.Minute), errors.New("save failed"))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "run-2", status.RunID)
	assert.Equal(t, StateFailed, status.State)
	assert.Equal(t, "save failed", status.Error)
	assert.Equal(t, 2, status.RunsTotal)
}

func TestStatusTrackerNextRun(t *testing.T) {
	t.Parallel()

	tracker := NewStatusTracker()
	next := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	tracker.NextRun(next)

	snap := tracker.Snapshot()
	require.NotNil(t, snap.NextRunAt)
	assert.Equal(t, next, *snap.NextRunAt)
}

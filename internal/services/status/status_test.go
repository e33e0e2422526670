package status_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/yard_tracker/internal/metrics"
	"github.com/LeonardoBeccarini/yard_tracker/internal/model/entities"
	"github.com/LeonardoBeccarini/yard_tracker/internal/model/messages"
	"github.com/LeonardoBeccarini/yard_tracker/internal/services/status"
)

type staticSource struct{ snap *messages.Snapshot }

func (s staticSource) Snapshot() *messages.Snapshot { return s.snap }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHTTPMux_ServesSnapshot(t *testing.T) {
	snap := &messages.Snapshot{
		Yards: []messages.YardSummary{
			{YardID: 1, CompletionPercentage: 40, Status: entities.Band40},
			{YardID: 2},
		},
		Machines:    []messages.MachineSnapshot{{MachineID: 5, X: 1, Y: 2, CurrentYardID: 1}},
		Processed:   10,
		Failed:      1,
		Transitions: 2,
	}
	mux := status.NewHTTPMux(staticSource{snap}, metrics.New())

	rec := get(t, mux, "/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"yards":2,"machines":1,"processed":10,"failed":1,"transitions":2,"done":false}`, rec.Body.String())

	rec = get(t, mux, "/yards/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var y messages.YardSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &y))
	assert.Equal(t, entities.Band40, y.Status)

	assert.Equal(t, http.StatusNotFound, get(t, mux, "/yards/99").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, mux, "/yards/abc").Code)

	rec = get(t, mux, "/machines")
	var ms []messages.MachineSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ms))
	assert.Equal(t, snap.Machines, ms)

	assert.Equal(t, http.StatusNotFound, get(t, mux, "/transport").Code)
	assert.Equal(t, "ok", get(t, mux, "/healthz").Body.String())
}

func TestHTTPMux_NoSnapshotYet(t *testing.T) {
	mux := status.NewHTTPMux(staticSource{}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, mux, "/yards").Code)
	assert.Equal(t, http.StatusOK, get(t, mux, "/healthz").Code)
}

func TestHTTPMux_Metrics(t *testing.T) {
	m := metrics.New()
	m.Processed(false)
	mux := status.NewHTTPMux(staticSource{}, m)

	rec := get(t, mux, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "yard_tracker_messages_processed_total 1"))
}

func TestHealthServer_ServingLifecycle(t *testing.T) {
	hs := status.NewHealthServer(zap.NewNop())
	ctx := context.Background()

	st, err := hs.Check(ctx, status.ServiceName)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)

	hs.SetServing(true)
	st, err = hs.Check(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, st)

	_, err = hs.Check(ctx, "unknown.Service")
	assert.Error(t, err)
}

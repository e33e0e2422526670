package metrics_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/yard_tracker/internal/metrics"
)

func TestMetrics_Counters(t *testing.T) {
	m := metrics.New()
	m.Processed(false)
	m.Processed(true)
	m.Transition("40%")
	m.Transport(true, false, true, false, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("40%")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransportLost))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TransportDelivered))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *metrics.Metrics
	m.Processed(true)
	m.Transition("20%")
	m.SetQueueDepth(3)
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.Processed(false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "yard_tracker_messages_processed_total 1"))
}

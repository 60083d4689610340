package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Request("join", ResultOK)
	m.Request("join", ResultOK)
	m.Request("produce", ResultRejected)
	m.Reconnect()
	m.SetConsumers(3)
	m.Event("connected")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("join", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("produce", ResultRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconnects))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.consumers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("connected")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Request("join", ResultOK)
		m.Reconnect()
		m.SetConsumers(1)
		m.Event("closed")
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.Reconnect()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "voice_client_signaling_reconnects_total 1"))
}

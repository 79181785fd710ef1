package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveriesByResult(t *testing.T) {
	m := New("parley")

	m.ObserveDelivery("typing", true)
	m.ObserveDelivery("typing", true)
	m.ObserveDelivery("typing", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.deliveries.WithLabelValues("typing", ResultDelivered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("typing", ResultDropped)))
}

func TestGauges(t *testing.T) {
	m := New("parley")

	m.SetActiveConnections(3)
	m.SetRooms(7)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeConnections))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.rooms))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SetActiveConnections(1)
		m.SetRooms(1)
		m.IncInbound("setup")
		m.ObserveDelivery("typing", false)
		m.ObserveHTTP(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New("parley")
	m.IncInbound("setup")
	m.ObserveHTTP(http.MethodGet, "/api/health", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `parley_ws_inbound_events_total{event="setup"} 1`))
	assert.True(t, strings.Contains(body, `parley_http_requests_total{method="GET",route="/api/health",status="200"} 1`))
}

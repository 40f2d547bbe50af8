package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetricsRegistersOnce(t *testing.T) {
	assert.NotPanics(t, InitMetrics)
	assert.NotPanics(t, InitMetrics)

	ObserveAPICall("status", OutcomeOK, 20*time.Millisecond)
	WebSocketClients.Set(2)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	byName := make(map[string]*dto.MetricFamily)
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}
	require.Contains(t, byName, "netguard_api_requests_total")
	require.Contains(t, byName, "netguard_api_request_duration_seconds")
	require.Contains(t, byName, "netguard_websocket_clients")

	assert.GreaterOrEqual(t, byName["netguard_api_requests_total"].GetMetric()[0].GetCounter().GetValue(), 1.0)
	assert.Equal(t, 2.0, byName["netguard_websocket_clients"].GetMetric()[0].GetGauge().GetValue())
}

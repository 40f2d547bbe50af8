package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nshruti113/netguard-dashboard/internal/models"
)

func TestDeriveSeverity(t *testing.T) {
	cases := map[string]models.Severity{
		"DDoS Injection Attempt":   models.SeverityCritical,
		"SQL Injection":            models.SeverityCritical,
		"ddos":                     models.SeverityCritical,
		"SSH Brute Force":          models.SeverityHigh,
		"Unauthorized Access":      models.SeverityHigh,
		"Brute Force Scanning":     models.SeverityHigh,
		"Port Scanning":            models.SeverityMedium,
		"Suspicious Payload":       models.SeverityMedium,
		"Anomalous Traffic":        models.SeverityLow,
		"":                         models.SeverityLow,
		"bruteforce":               models.SeverityLow,
		"UNAUTHORIZED scanning":    models.SeverityHigh,
		"\x00\xff weird bytes ddos": models.SeverityCritical,
	}
	for label, want := range cases {
		assert.Equal(t, want, DeriveSeverity(label), "label %q", label)
	}
}

func TestDeriveSeverityIsTotalAndIdempotent(t *testing.T) {
	labels := []string{"", "x", "DDOS", "scanning suspicious", "brute force ddos", "日本語"}
	for _, label := range labels {
		first := DeriveSeverity(label)
		assert.True(t, first.Valid())
		assert.Equal(t, first, DeriveSeverity(label))
	}
}

func TestWithSeverityKeepsExisting(t *testing.T) {
	a := models.Alert{ID: "1", AttackType: "DDoS", Severity: models.SeverityLow}
	assert.Equal(t, models.SeverityLow, WithSeverity(a).Severity)

	a.Severity = models.SeverityUnknown
	assert.Equal(t, models.SeverityCritical, WithSeverity(a).Severity)
	assert.Equal(t, WithSeverity(a), WithSeverity(WithSeverity(a)))
}

func TestFlowsDropsMalformedElements(t *testing.T) {
	body := []byte(`[
		{"_id": "f1", "source_port": 443, "total_source_bytes": 2048},
		{"source_port": 80},
		42,
		"flow",
		null,
		{"_id": ""},
		{"id": "f2", "destination_port": "8080"},
		[1, 2]
	]`)

	flows := Flows(body)
	require.Len(t, flows, 2)
	assert.Equal(t, "f1", flows[0].ID)
	assert.Equal(t, 443, flows[0].SourcePort)
	assert.Equal(t, int64(2048), flows[0].TotalSourceBytes)
	assert.Equal(t, "f2", flows[1].ID)
	assert.Equal(t, 8080, flows[1].DestinationPort)
}

func TestFlowsNonArrayBody(t *testing.T) {
	for _, body := range []string{`{"_id":"f1"}`, `null`, `"flows"`, ``, `{`, `{"results": []}`} {
		assert.Empty(t, Flows([]byte(body)), "body %q", body)
	}
}

func TestFlowDefaultsMalformedFields(t *testing.T) {
	f, ok := Flow([]byte(`{
		"_id": 17,
		"source_port": "not a port",
		"destination_port": -4,
		"total_source_bytes": -100,
		"total_destination_bytes": 1.5e3,
		"total_source_packets": true,
		"total_destination_packets": 9223372036854775808,
		"start_datetime": "2024-03-01T10:00:00Z",
		"stop_datetime": "yesterday",
		"duration": "2.5",
		"prediction": true
	}`))
	require.True(t, ok)
	assert.Equal(t, "17", f.ID)
	assert.Zero(t, f.SourcePort)
	assert.Zero(t, f.DestinationPort)
	assert.Zero(t, f.TotalSourceBytes)
	assert.Equal(t, int64(1500), f.TotalDestinationBytes)
	assert.Zero(t, f.TotalSourcePackets)
	assert.Zero(t, f.TotalDestinationPackets, "2^63 overflows int64")
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), f.StartDateTime)
	assert.True(t, f.StopDateTime.IsZero())
	assert.InDelta(t, 2.5, f.Duration, 1e-9)
	assert.Equal(t, "true", f.Prediction)
}

func TestAlertsDeriveMissingSeverity(t *testing.T) {
	body := []byte(`[
		{"_id": "a1", "attack_type": "DDoS Flood", "timestamp": "2024-03-01T10:00:00Z", "flow": "f1"},
		{"_id": "a2", "attack_type": "DDoS Flood", "severity": "low"},
		{"_id": "a3", "attack_type": "Port Scanning", "severity": "bogus"},
		{"_id": "a4", "severity": null},
		{"attack_type": "no id"},
		"junk"
	]`)

	alerts := Alerts(body)
	require.Len(t, alerts, 4)

	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "f1", alerts[0].FlowID)
	assert.Equal(t, models.SeverityLow, alerts[1].Severity)
	assert.Equal(t, models.SeverityMedium, alerts[2].Severity)
	assert.Equal(t, models.SeverityLow, alerts[3].Severity)
	assert.Empty(t, alerts[3].AttackType)
}

func TestAlertEmbeddedFlow(t *testing.T) {
	a, ok := Alert([]byte(`{"_id": "a1", "user": "u1", "attack_type": "x", "flow": {"_id": "f9", "source_port": 22}}`))
	require.True(t, ok)
	require.NotNil(t, a.Flow)
	assert.Equal(t, "f9", a.Flow.ID)
	assert.Equal(t, 22, a.Flow.SourcePort)
	assert.Equal(t, "f9", a.LinkedFlowID())
	assert.Equal(t, "u1", a.User)
}

func TestStatus(t *testing.T) {
	s, ok := Status([]byte(`{"network_status": "Under Attack", "recent_flows_count": 12, "recent_alerts_count": "3", "last_updated": 1700000000}`))
	require.True(t, ok)
	assert.Equal(t, models.StatusUnderAttack, s.NetworkStatus)
	assert.Equal(t, 12, s.RecentFlowsCount)
	assert.Equal(t, 3, s.RecentAlertsCount)
	assert.Equal(t, int64(1700000000), s.LastUpdated.Unix())

	_, ok = Status([]byte(`[]`))
	assert.False(t, ok)
}

func TestCredential(t *testing.T) {
	c, ok := Credential([]byte(`{"key": "abc", "user": {"_id": "u1", "email": "a@b.c"}}`))
	require.True(t, ok)
	assert.Equal(t, "abc", c.Token)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "a@b.c", c.Email)

	_, ok = Credential([]byte(`{"detail": "nope"}`))
	assert.False(t, ok)
}

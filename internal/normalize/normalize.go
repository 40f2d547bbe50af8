// Package normalize maps raw NetGuard API payloads into fully-populated
// records. Every function is total: malformed input degrades to defaults or
// is dropped, it never returns an error or panics.
package normalize

import (
	"strings"

	"github.com/nshruti113/netguard-dashboard/internal/models"
)

// severityRules is checked in order; the first matching keyword wins.
var severityRules = []struct {
	severity models.Severity
	keywords []string
}{
	{models.SeverityCritical, []string{"ddos", "injection"}},
	{models.SeverityHigh, []string{"brute force", "unauthorized"}},
	{models.SeverityMedium, []string{"scanning", "suspicious"}},
}

// DeriveSeverity infers a severity from an attack-type label
func DeriveSeverity(attackType string) models.Severity {
	label := strings.ToLower(attackType)
	for _, rule := range severityRules {
		for _, kw := range rule.keywords {
			if strings.Contains(label, kw) {
				return rule.severity
			}
		}
	}
	return models.SeverityLow
}

// WithSeverity fills in a derived severity when the alert carries none.
// An existing severity is kept as is.
func WithSeverity(a models.Alert) models.Alert {
	if !a.Severity.Valid() {
		a.Severity = DeriveSeverity(a.AttackType)
	}
	return a
}

// Flows decodes a flow collection. A non-array body yields an empty slice
// and elements without an identifier are dropped.
func Flows(body []byte) []models.NetworkFlow {
	items := decodeArray(body)
	flows := make([]models.NetworkFlow, 0, len(items))
	for _, item := range items {
		if f, ok := Flow(item); ok {
			flows = append(flows, f)
		}
	}
	return flows
}

// Flow decodes a single flow; ok is false when the body is not an object
// with an identifier.
func Flow(body []byte) (models.NetworkFlow, bool) {
	r, ok := decodeRecord(body)
	if !ok {
		return models.NetworkFlow{}, false
	}
	f := flowFromRecord(r)
	return f, f.ID != ""
}

func flowFromRecord(r record) models.NetworkFlow {
	return models.NetworkFlow{
		ID:                      r.str("_id", "id"),
		Source:                  r.str("source", "source_ip"),
		SourcePort:              r.port("source_port"),
		Destination:             r.str("destination", "destination_ip"),
		DestinationPort:         r.port("destination_port"),
		Protocol:                r.str("protocol", "protocol_name"),
		ApplicationName:         r.str("application_name"),
		TotalSourceBytes:        r.count("total_source_bytes"),
		TotalDestinationBytes:   r.count("total_destination_bytes"),
		TotalSourcePackets:      r.count("total_source_packets"),
		TotalDestinationPackets: r.count("total_destination_packets"),
		StartDateTime:           r.time("start_datetime"),
		StopDateTime:            r.time("stop_datetime"),
		Duration:                r.seconds("duration"),
		Prediction:              r.flag("prediction"),
	}
}

// Alerts decodes an alert collection, dropping malformed elements and
// deriving missing severities.
func Alerts(body []byte) []models.Alert {
	items := decodeArray(body)
	alerts := make([]models.Alert, 0, len(items))
	for _, item := range items {
		if a, ok := Alert(item); ok {
			alerts = append(alerts, a)
		}
	}
	return alerts
}

// Alert decodes a single alert
func Alert(body []byte) (models.Alert, bool) {
	r, ok := decodeRecord(body)
	if !ok {
		return models.Alert{}, false
	}
	a := models.Alert{
		ID:         r.str("_id", "id"),
		User:       r.str("user", "user_id"),
		AttackType: r.str("attack_type"),
		Timestamp:  r.time("timestamp"),
	}
	if a.ID == "" {
		return models.Alert{}, false
	}

	if embedded, ok := r.object("flow"); ok {
		f := flowFromRecord(embedded)
		a.Flow = &f
		a.FlowID = f.ID
	} else {
		a.FlowID = r.str("flow", "flow_id")
	}

	// An unrecognised severity counts as absent and is derived
	if r.has("severity") {
		a.Severity, _ = models.ParseSeverity(r.str("severity"))
	}
	return WithSeverity(a), true
}

// Status decodes the status snapshot
func Status(body []byte) (models.Status, bool) {
	r, ok := decodeRecord(body)
	if !ok {
		return models.Status{}, false
	}
	return models.Status{
		NetworkStatus:     r.str("network_status", "status"),
		RecentFlowsCount:  int(r.count("recent_flows_count")),
		RecentAlertsCount: int(r.count("recent_alerts_count")),
		LastUpdated:       r.time("last_updated"),
	}, true
}

// Credential decodes a login or registration response. Token-style servers
// answer with "token", key-style ones with "key".
func Credential(body []byte) (models.Credential, bool) {
	r, ok := decodeRecord(body)
	if !ok {
		return models.Credential{}, false
	}
	c := models.Credential{
		Token:  r.str("token", "key", "access"),
		UserID: r.str("user_id", "uid"),
		Email:  r.str("email"),
	}
	if user, ok := r.object("user"); ok {
		if c.UserID == "" {
			c.UserID = user.str("_id", "id")
		}
		if c.Email == "" {
			c.Email = user.str("email")
		}
	}
	return c, c.Token != ""
}

// APIKey decodes the api-key response
func APIKey(body []byte) (models.APIKey, bool) {
	r, ok := decodeRecord(body)
	if !ok {
		return models.APIKey{}, false
	}
	k := models.APIKey{
		Key:       r.str("api_key", "key"),
		CreatedAt: r.time("created_at"),
	}
	return k, k.Key != ""
}

package models

import "time"

// Alert represents a detected security event, optionally linked to a flow.
// Flow is set when the API embeds the flow record, FlowID when it only
// references it.
type Alert struct {
	ID         string       `json:"_id"`
	User       string       `json:"user,omitempty"`
	FlowID     string       `json:"flow_id,omitempty"`
	Flow       *NetworkFlow `json:"flow,omitempty"`
	AttackType string       `json:"attack_type"`
	Timestamp  time.Time    `json:"timestamp,omitzero"`
	Severity   Severity     `json:"severity"`
}

// LinkedFlowID returns the id of the flow the alert points at, if any
func (a Alert) LinkedFlowID() string {
	if a.Flow != nil && a.Flow.ID != "" {
		return a.Flow.ID
	}
	return a.FlowID
}

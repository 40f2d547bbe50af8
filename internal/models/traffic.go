package models

import "time"

// Network status labels reported by the NetGuard API
const (
	StatusSafe        = "Safe"
	StatusUnderAttack = "Under Attack"
)

// NetworkFlow represents one recorded network connection with its traffic counters
type NetworkFlow struct {
	ID                      string    `json:"_id"`
	Source                  string    `json:"source,omitempty"`
	SourcePort              int       `json:"source_port"`
	Destination             string    `json:"destination,omitempty"`
	DestinationPort         int       `json:"destination_port"`
	Protocol                string    `json:"protocol,omitempty"`
	ApplicationName         string    `json:"application_name,omitempty"`
	TotalSourceBytes        int64     `json:"total_source_bytes"`
	TotalDestinationBytes   int64     `json:"total_destination_bytes"`
	TotalSourcePackets      int64     `json:"total_source_packets"`
	TotalDestinationPackets int64     `json:"total_destination_packets"`
	StartDateTime           time.Time `json:"start_datetime,omitzero"`
	StopDateTime            time.Time `json:"stop_datetime,omitzero"`
	Duration                float64   `json:"duration"` // seconds
	Prediction              string    `json:"prediction,omitempty"`
}

// Status is the aggregate network snapshot returned by /status/
type Status struct {
	NetworkStatus     string    `json:"network_status"`
	RecentFlowsCount  int       `json:"recent_flows_count"`
	RecentAlertsCount int       `json:"recent_alerts_count"`
	LastUpdated       time.Time `json:"last_updated,omitzero"`
}

// RemoteConfig is the free-form configuration document served by /config/
type RemoteConfig map[string]any

// TrafficWindow aggregates newly observed flows over one minute
type TrafficWindow struct {
	Start         time.Time     `json:"start"`
	Flows         int           `json:"flows"`
	Bytes         int64         `json:"bytes"`
	Packets       int64         `json:"packets"`
	UniqueSources int           `json:"unique_sources"`
	TopSources    []SourceCount `json:"top_sources"`
}

// SourceCount is the share of a window's flows coming from one address
type SourceCount struct {
	Address    string  `json:"address"`
	Flows      int     `json:"flows"`
	Percentage float64 `json:"percentage"`
}

package view

import "github.com/nshruti113/netguard-dashboard/internal/models"

// FlowRow is a flow rendered for the flows table
type FlowRow struct {
	ID              string `json:"id"`
	Started         string `json:"started"`
	Stopped         string `json:"stopped"`
	Duration        string `json:"duration"`
	Source          string `json:"source"`
	Destination     string `json:"destination"`
	SourcePort      string `json:"source_port"`
	DestinationPort string `json:"destination_port"`
	Protocol        string `json:"protocol"`
	Application     string `json:"application"`
	SourceData      string `json:"source_data"`
	DestinationData string `json:"destination_data"`
}

// AlertRow is an alert rendered for the alerts list
type AlertRow struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Time     string `json:"time"`
	Flow     string `json:"flow"`
}

func orNA(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}

func NewFlowRow(f models.NetworkFlow) FlowRow {
	return FlowRow{
		ID:              f.ID,
		Started:         DisplayTime(f.StartDateTime),
		Stopped:         DisplayTime(f.StopDateTime),
		Duration:        DisplayDuration(f.Duration),
		Source:          orNA(f.Source),
		Destination:     orNA(f.Destination),
		SourcePort:      DisplayPort(f.SourcePort),
		DestinationPort: DisplayPort(f.DestinationPort),
		Protocol:        orNA(f.Protocol),
		Application:     orNA(f.ApplicationName),
		SourceData:      FormatBytes(f.TotalSourceBytes),
		DestinationData: FormatBytes(f.TotalDestinationBytes),
	}
}

func NewAlertRow(a models.Alert) AlertRow {
	return AlertRow{
		ID:       a.ID,
		Label:    AttackLabel(a),
		Severity: a.Severity.String(),
		Time:     DisplayTime(a.Timestamp),
		Flow:     orNA(a.LinkedFlowID()),
	}
}

func FlowRows(flows []models.NetworkFlow) []FlowRow {
	rows := make([]FlowRow, len(flows))
	for i, f := range flows {
		rows[i] = NewFlowRow(f)
	}
	return rows
}

func AlertRows(alerts []models.Alert) []AlertRow {
	rows := make([]AlertRow, len(alerts))
	for i, a := range alerts {
		rows[i] = NewAlertRow(a)
	}
	return rows
}

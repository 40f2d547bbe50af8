package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/nshruti113/netguard-dashboard/internal/dashboard"
	"github.com/nshruti113/netguard-dashboard/internal/models"
	"github.com/nshruti113/netguard-dashboard/internal/view"
)

var (
	colorRed     = color.New(color.FgRed, color.Bold)
	colorGreen   = color.New(color.FgGreen, color.Bold)
	colorYellow  = color.New(color.FgYellow)
	colorCyan    = color.New(color.FgCyan)
	colorMagenta = color.New(color.FgMagenta)
	colorWhite   = color.New(color.FgWhite)
)

func severityColor(s models.Severity) *color.Color {
	switch s {
	case models.SeverityCritical:
		return colorMagenta
	case models.SeverityHigh:
		return colorRed
	case models.SeverityMedium:
		return colorYellow
	default:
		return colorCyan
	}
}

func securityColor(level view.SecurityLevel) *color.Color {
	switch level.Level {
	case "secure":
		return colorGreen
	case "threat":
		return colorRed
	default:
		return colorYellow
	}
}

func printSeparator(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("─", 60))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatus(w io.Writer, st models.Status) {
	level := view.SecurityLevelOf(st.NetworkStatus)
	securityColor(level).Fprintf(w, "%s: %s\n", orUnknown(st.NetworkStatus), level.Message)
	fmt.Fprintf(w, "Recent flows:  %d\n", st.RecentFlowsCount)
	fmt.Fprintf(w, "Recent alerts: %d\n", st.RecentAlertsCount)
	fmt.Fprintf(w, "Last updated:  %s\n", view.DisplayTime(st.LastUpdated))
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// printFlows renders flows as an aligned table
func printFlows(w io.Writer, flows []models.NetworkFlow) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSOURCE\tDESTINATION\tPROTO\tAPP\tSENT\tRECEIVED")
	for _, r := range view.FlowRows(flows) {
		fmt.Fprintf(tw, "%s\t%s\t%s:%s\t%s:%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Started, r.Source, r.SourcePort, r.Destination, r.DestinationPort,
			r.Protocol, r.Application, r.SourceData, r.DestinationData)
	}
	tw.Flush()
}

func printFlow(w io.Writer, f models.NetworkFlow) {
	r := view.NewFlowRow(f)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, kv := range [][2]string{
		{"ID", r.ID},
		{"Started", r.Started},
		{"Stopped", r.Stopped},
		{"Duration", r.Duration},
		{"Source", r.Source + ":" + r.SourcePort},
		{"Destination", r.Destination + ":" + r.DestinationPort},
		{"Protocol", r.Protocol},
		{"Application", r.Application},
		{"Sent", r.SourceData},
		{"Received", r.DestinationData},
		{"Prediction", f.Prediction},
	} {
		fmt.Fprintf(tw, "%s:\t%s\n", kv[0], kv[1])
	}
	tw.Flush()
}

// printAlerts renders alerts as a table. Severity is the last column so
// its colour codes never skew the alignment.
func printAlerts(w io.Writer, alerts []models.Alert) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tATTACK\tFLOW\tSEVERITY")
	for _, a := range alerts {
		r := view.NewAlertRow(a)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Time, r.Label, r.Flow, severityColor(a.Severity).Sprint(strings.ToUpper(r.Severity)))
	}
	tw.Flush()
}

func printAlertLine(w io.Writer, a models.Alert) {
	sev := severityColor(a.Severity)
	sev.Fprintf(w, "[%s] ", strings.ToUpper(a.Severity.String()))
	fmt.Fprintf(w, "%s  %s  flow=%s\n", view.DisplayTime(a.Timestamp), view.AttackLabel(a), view.NewAlertRow(a).Flow)
}

func printDashboard(w io.Writer, s dashboard.Snapshot) {
	securityColor(s.Security).Fprintf(w, "%s: %s\n", orUnknown(s.Security.Status), s.Security.Message)
	fmt.Fprintf(w, "Flows: %d  Alerts: %d  Settled: %s\n", s.TotalFlows, s.TotalAlerts, view.DisplayTime(s.SettledAt))
	for part, msg := range s.Failures {
		colorYellow.Fprintf(w, "  %s unavailable: %s\n", part, msg)
	}
	if len(s.RecentAlerts) > 0 {
		fmt.Fprintln(w, "Recent alerts:")
		for _, a := range s.RecentAlerts {
			fmt.Fprint(w, "  ")
			printAlertLine(w, a)
		}
	}
	if len(s.RecentFlows) > 0 {
		fmt.Fprintln(w, "Recent flows:")
		printFlows(w, s.RecentFlows)
	}
}

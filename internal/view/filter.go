package view

import (
	"strings"

	"github.com/nshruti113/netguard-dashboard/internal/models"
)

// AllSeverities is the category sentinel that disables the severity check
const AllSeverities = "all"

// AlertFilter combines a free-text search on the attack type with a severity
// category. Both predicates must hold.
type AlertFilter struct {
	Search   string `form:"search" json:"search"`
	Severity string `form:"severity" json:"severity"`
}

// Match reports whether a passes both predicates
func (f AlertFilter) Match(a models.Alert) bool {
	return matchesSearch(a.AttackType, f.Search) && f.matchesSeverity(a.Severity)
}

func (f AlertFilter) matchesSeverity(s models.Severity) bool {
	want := strings.TrimSpace(f.Severity)
	if want == "" || strings.EqualFold(want, AllSeverities) {
		return true
	}
	sev, ok := models.ParseSeverity(want)
	return ok && sev == s
}

// FilterAlerts returns the alerts matching f, preserving order
func FilterAlerts(alerts []models.Alert, f AlertFilter) []models.Alert {
	out := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	return out
}

// FlowFilter searches flows by address, protocol or application name
type FlowFilter struct {
	Search string `form:"search" json:"search"`
}

func (f FlowFilter) Match(fl models.NetworkFlow) bool {
	if strings.TrimSpace(f.Search) == "" {
		return true
	}
	for _, field := range []string{fl.Source, fl.Destination, fl.Protocol, fl.ApplicationName} {
		if matchesSearch(field, f.Search) {
			return true
		}
	}
	return false
}

// FilterFlows returns the flows matching f, preserving order
func FilterFlows(flows []models.NetworkFlow, f FlowFilter) []models.NetworkFlow {
	out := make([]models.NetworkFlow, 0, len(flows))
	for _, fl := range flows {
		if f.Match(fl) {
			out = append(out, fl)
		}
	}
	return out
}

func matchesSearch(field, search string) bool {
	return strings.Contains(strings.ToLower(field), strings.ToLower(search))
}

// Recent returns at most n leading items
func Recent[T any](items []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(items) <= n {
		return items
	}
	return items[:n]
}

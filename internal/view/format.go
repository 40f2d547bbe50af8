package view

import (
	"fmt"
	"strconv"
	"time"

	"github.com/nshruti113/netguard-dashboard/internal/models"
)

// Placeholders rendered in place of missing values
const (
	NotAvailable  = "N/A"
	UnknownThreat = "Potential Threat"
)

var byteUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatBytes renders a byte count with two decimals in the largest unit
// up to GB that keeps the value at or above 1.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	v, unit := float64(n), 0
	for v >= 1024 && unit < len(byteUnits)-1 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", v, byteUnits[unit])
}

// DisplayPort renders a port, or N/A when the API did not report one
func DisplayPort(port int) string {
	if port <= 0 {
		return NotAvailable
	}
	return strconv.Itoa(port)
}

// DisplayTime renders t in the dashboard's timestamp layout
func DisplayTime(t time.Time) string {
	if t.IsZero() {
		return NotAvailable
	}
	return t.Format(time.DateTime)
}

// DisplayDuration renders a flow duration in seconds
func DisplayDuration(seconds float64) string {
	return fmt.Sprintf("%.2fs", seconds)
}

// AttackLabel is the attack type, or a placeholder when the API sent none
func AttackLabel(a models.Alert) string {
	if a.AttackType == "" {
		return UnknownThreat
	}
	return a.AttackType
}

// SecurityLevel describes how the dashboard presents a network status
type SecurityLevel struct {
	Status  string `json:"status"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func SecurityLevelOf(status string) SecurityLevel {
	switch status {
	case models.StatusSafe:
		return SecurityLevel{Status: status, Level: "secure", Message: "Your network is secure"}
	case models.StatusUnderAttack:
		return SecurityLevel{Status: status, Level: "threat", Message: "Security threats detected"}
	default:
		return SecurityLevel{Status: status, Level: "unknown", Message: "Network status unknown"}
	}
}

package models

import "strings"

// Severity is the ordinal risk tag of an alert
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

// Severities lists the valid severities from lowest to highest
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

func (s Severity) String() string {
	return severityNames[s]
}

// Valid reports whether s is one of low, medium, high or critical
func (s Severity) Valid() bool {
	return s >= SeverityLow && s <= SeverityCritical
}

// Rank orders severities: 0 for unknown, 1 (low) through 4 (critical)
func (s Severity) Rank() int {
	if !s.Valid() {
		return 0
	}
	return int(s)
}

// ParseSeverity parses a severity name, ignoring case and surrounding space.
func ParseSeverity(s string) (Severity, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	for sev, n := range severityNames {
		if n == name {
			return sev, true
		}
	}
	return SeverityUnknown, false
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText never fails: unrecognised names decode to SeverityUnknown.
func (s *Severity) UnmarshalText(text []byte) error {
	*s, _ = ParseSeverity(string(text))
	return nil
}

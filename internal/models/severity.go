package models

import (
	"fmt"
	"strings"
)

// Severity is the normalized severity of a finding. The ordering is
// LOW < MEDIUM < HIGH < CRITICAL.
type Severity string

// Severity levels from least to most severe.
const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank returns the ordinal position of a severity, higher meaning more
// severe. Unknown severities rank below LOW.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is one of the four defined levels.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// ParseSeverity converts a user-supplied severity string, case-insensitively.
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("invalid severity %q (want LOW, MEDIUM, HIGH or CRITICAL)", raw)
	}
	return s, nil
}

// NormalizeSeverity maps the label vocabulary used by the various sources
// onto the four canonical levels. Informational and unrecognized labels
// normalize to LOW rather than being dropped.
func NormalizeSeverity(label string) Severity {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "critical", "very-high", "very high":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium", "moderate":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SeverityFromScore maps a numeric 0-10 severity score (GuardDuty style)
// onto a canonical level: 9.0+ CRITICAL, 7.0+ HIGH, 4.0+ MEDIUM, else LOW.
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

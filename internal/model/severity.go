package model

import "fmt"

// Severity grades the risk level of an assessment or intervention.
// The ordering is meaningful: comparisons drive escalation detection
// and the immediate-response tiering.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityModerate
	SeverityHigh
	SeverityCritical
	SeverityImmediate
)

var severityNames = map[Severity]string{
	SeverityNone:      "none",
	SeverityLow:       "low",
	SeverityModerate:  "moderate",
	SeverityHigh:      "high",
	SeverityCritical:  "critical",
	SeverityImmediate: "immediate",
}

// String returns the lowercase wire name of the severity.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler for JSON serialization.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	parsed, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity converts a wire name back to a Severity.
func ParseSeverity(name string) (Severity, error) {
	for sev, n := range severityNames {
		if n == name {
			return sev, nil
		}
	}
	return SeverityNone, fmt.Errorf("model: unknown severity %q", name)
}

// RequiresImmediate reports whether this severity mandates immediate intervention.
// Invariant: an assessment's requires_immediate flag equals this, always.
func (s Severity) RequiresImmediate() bool {
	return s >= SeverityCritical
}

// RiskLevel is the coarse risk grading used on stored risk assessments.
// It mirrors clinical triage language rather than the numeric severity scale.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskImminent RiskLevel = "imminent"
)

// SeverityFromRisk maps a stored risk level onto the severity scale.
// This is the single mapping shared by the aggregator and the intervention
// state machine so the two can never disagree about a case's severity.
func SeverityFromRisk(r RiskLevel) Severity {
	switch r {
	case RiskImminent:
		return SeverityCritical
	case RiskHigh:
		return SeverityHigh
	case RiskModerate:
		return SeverityModerate
	default:
		return SeverityLow
	}
}

// Package escalation holds the single shared escalation definition.
//
// Both the aggregator's historical analysis and the intervention state
// machine's update path call IsEscalation; keeping one implementation here
// prevents the two from drifting apart on what counts as an escalation.
package escalation

import "github.com/ashita-ai/mamori/internal/model"

// ConfidenceJump is the minimum confidence increase that, combined with a
// one-level severity increase, qualifies as an escalation.
const ConfidenceJump = 0.2

// IsEscalation reports whether current represents a qualifying escalation
// relative to previous. True when severity increases by two or more levels,
// when severity increases by one level and confidence rises by at least
// ConfidenceJump, or when the case newly requires immediate intervention.
func IsEscalation(previous, current model.CrisisAssessment) bool {
	delta := int(current.Severity) - int(previous.Severity)
	if delta >= 2 {
		return true
	}
	if delta >= 1 && current.Confidence-previous.Confidence >= ConfidenceJump {
		return true
	}
	if current.RequiresImmediate && !previous.RequiresImmediate {
		return true
	}
	return false
}
